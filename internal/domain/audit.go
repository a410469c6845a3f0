package domain

import (
	"database/sql"
	"time"
)

// AuditAction is the direction of a dismissal-coordinator call.
type AuditAction string

const (
	AuditActionDismiss AuditAction = "dismiss"
	AuditActionRestore AuditAction = "restore"
)

// AuditOutcome records whether the call changed state or was rejected by a
// state guard (already dismissed / not dismissed).
type AuditOutcome string

const (
	AuditOutcomeApplied  AuditOutcome = "applied"
	AuditOutcomeRejected AuditOutcome = "rejected"
)

// DismissalAudit domain model (maps to the dismissal_audit table).
// Append-only: one row per dismiss/restore call, successful or not. Rows are
// never updated or deleted.
type DismissalAudit struct {
	AuditID   string         `db:"audit_id"`  // UUID, PRIMARY KEY
	RecordID  string         `db:"record_id"` // NOT NULL, FK to source_records
	Action    AuditAction    `db:"action"`    // NOT NULL
	Actor     string         `db:"actor"`     // NOT NULL, opaque caller identity
	Reason    sql.NullString `db:"reason"`
	Outcome   AuditOutcome   `db:"outcome"` // NOT NULL
	CreatedAt time.Time      `db:"created_at"`
}

// ToJSON converts to the HTTP response shape.
func (a *DismissalAudit) ToJSON() map[string]any {
	m := map[string]any{
		"audit_id":   a.AuditID,
		"record_id":  a.RecordID,
		"action":     string(a.Action),
		"actor":      a.Actor,
		"outcome":    string(a.Outcome),
		"created_at": a.CreatedAt,
	}
	putNullable(m, "reason", a.Reason)
	return m
}
