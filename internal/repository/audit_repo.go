package repository

import (
	"context"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// AuditRepository reads the append-only dismissal audit trail. Entries are
// written by the dismissal transaction; nothing updates or deletes them.
type AuditRepository interface {
	// ListByRecord returns a record's audit entries oldest first.
	ListByRecord(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error)
}
