package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

const dismissRecordSQL = `
	UPDATE source_records
	SET active = FALSE, dismissed_by = $2, dismissed_at = NOW(), dismiss_reason = $3
	WHERE record_id = $1 AND active = TRUE
`

const restoreRecordSQL = `
	UPDATE source_records
	SET active = TRUE, dismissed_by = NULL, dismissed_at = NULL, dismiss_reason = NULL
	WHERE record_id = $1 AND active = FALSE
`

// PostgresDismissalsRepository implements DismissalsRepository on Postgres.
//
// Both transitions follow the same script inside one transaction: find the
// owning property, lock its row, apply the guarded UPDATE, re-read the
// active set, recompute and store the snapshot, append the audit entry.
// A guarded UPDATE that matches no row means the record was already in the
// requested state; the transaction rolls back and the rejection is audited
// with a standalone insert.
type PostgresDismissalsRepository struct {
	db *sql.DB
}

func NewPostgresDismissalsRepository(db *sql.DB) *PostgresDismissalsRepository {
	return &PostgresDismissalsRepository{db: db}
}

var _ DismissalsRepository = (*PostgresDismissalsRepository)(nil)

func (r *PostgresDismissalsRepository) Dismiss(ctx context.Context, recordID, actor, reason string, rescore RescoreFunc) (*domain.ScoreSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	propertyID, err := r.propertyOf(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	if err := lockProperty(ctx, tx, propertyID); err != nil {
		return nil, fmt.Errorf("failed to lock property: %w", err)
	}

	result, err := tx.ExecContext(ctx, dismissRecordSQL, recordID, actor, textToAny(reason))
	if err != nil {
		return nil, fmt.Errorf("failed to dismiss record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Record exists but the guard did not match: already dismissed.
		tx.Rollback()
		return nil, r.rejected(ctx, recordID, domain.AuditActionDismiss, actor, reason, domain.ErrAlreadyDismissed)
	}

	snapshot, err := r.finishTransition(ctx, tx, propertyID, recordID, domain.AuditActionDismiss, actor, reason, rescore)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *PostgresDismissalsRepository) Restore(ctx context.Context, recordID, actor string, rescore RescoreFunc) (*domain.ScoreSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	propertyID, err := r.propertyOf(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	if err := lockProperty(ctx, tx, propertyID); err != nil {
		return nil, fmt.Errorf("failed to lock property: %w", err)
	}

	result, err := tx.ExecContext(ctx, restoreRecordSQL, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Record exists but the guard did not match: not currently dismissed.
		tx.Rollback()
		return nil, r.rejected(ctx, recordID, domain.AuditActionRestore, actor, "", domain.ErrNotDismissed)
	}

	snapshot, err := r.finishTransition(ctx, tx, propertyID, recordID, domain.AuditActionRestore, actor, "", rescore)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// finishTransition runs the shared tail of a successful guard: recompute the
// snapshot from the post-transition active set, store it, audit, commit.
func (r *PostgresDismissalsRepository) finishTransition(ctx context.Context, tx *sql.Tx, propertyID, recordID string, action domain.AuditAction, actor, reason string, rescore RescoreFunc) (*domain.ScoreSnapshot, error) {
	rows, err := tx.QueryContext(ctx, listActiveRecordsSQL, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active records: %w", err)
	}
	active, err := collectActiveRecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	snapshot, err := rescore(propertyID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute score: %w", err)
	}

	args, err := snapshotArgs(snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, upsertSnapshotSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertAuditSQL,
		recordID, string(action), actor, textToAny(reason), string(domain.AuditOutcomeApplied),
	); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return snapshot, nil
}

// rejected audits a guard rejection after the transaction rolled back and
// returns the guard error. An audit failure is noted alongside the guard
// error without masking it.
func (r *PostgresDismissalsRepository) rejected(ctx context.Context, recordID string, action domain.AuditAction, actor, reason string, guardErr error) error {
	_, err := r.db.ExecContext(ctx, insertAuditSQL,
		recordID, string(action), actor, textToAny(reason), string(domain.AuditOutcomeRejected),
	)
	if err != nil {
		return fmt.Errorf("%w (failed to audit rejection: %v)", guardErr, err)
	}
	return guardErr
}

func (r *PostgresDismissalsRepository) propertyOf(ctx context.Context, tx *sql.Tx, recordID string) (string, error) {
	var propertyID string
	err := tx.QueryRowContext(ctx,
		`SELECT property_id::text FROM source_records WHERE record_id = $1`,
		recordID,
	).Scan(&propertyID)
	if err == sql.ErrNoRows {
		return "", domain.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load record: %w", err)
	}
	return propertyID, nil
}

func textToAny(s string) any {
	if s == "" {
		return nil
	}
	return s
}
