// Package repository persists properties, source records, override state,
// score snapshots, sync cursors, and the dismissal audit trail in Postgres.
// All SQL lives here; services only see interfaces and domain types.
//
// Serialization rule: every write that touches a property's override state
// or snapshot first locks the owning properties row (SELECT ... FOR UPDATE),
// so dismissals, restores, and sync recomputes for one property always
// execute one at a time.
package repository

import (
	"context"
	"database/sql"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// lockPropertySQL takes the per-property write lock. Callers must run it
// inside a transaction before mutating override state or snapshots.
const lockPropertySQL = `SELECT 1 FROM properties WHERE property_id = $1 FOR UPDATE`

func lockProperty(ctx context.Context, tx *sql.Tx, propertyID string) error {
	var one int
	err := tx.QueryRowContext(ctx, lockPropertySQL, propertyID).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.ErrPropertyNotFound
	}
	return err
}
