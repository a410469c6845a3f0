package domain

import (
	"database/sql"
	"time"
)

// SyncCursor domain model (maps to the sync_cursors table).
// One row per (property, dataset): when the dataset last synced cleanly, the
// page offset to resume from after an interrupted run, and the last error if
// the most recent attempt failed. Drives staleness reporting.
type SyncCursor struct {
	PropertyID   string         `db:"property_id"`
	Dataset      string         `db:"dataset"`
	LastSyncedAt *time.Time     `db:"last_synced_at"` // NULL until the first clean run
	LastError    sql.NullString `db:"last_error"`
	PageOffset   int            `db:"page_offset"` // 0 when the dataset is fully caught up
	UpdatedAt    time.Time      `db:"updated_at"`
}

// ToJSON converts to the HTTP response shape.
func (c *SyncCursor) ToJSON() map[string]any {
	m := map[string]any{
		"property_id": c.PropertyID,
		"dataset":     c.Dataset,
		"page_offset": c.PageOffset,
		"updated_at":  c.UpdatedAt,
	}
	if c.LastSyncedAt != nil {
		m["last_synced_at"] = c.LastSyncedAt
	} else {
		m["last_synced_at"] = nil
	}
	putNullable(m, "last_error", c.LastError)
	return m
}
