package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SourceFamily is the kind of record a dataset produces.
type SourceFamily string

const (
	FamilyViolation     SourceFamily = "violation"
	FamilyPermit        SourceFamily = "permit"
	FamilyEquipment     SourceFamily = "equipment"
	FamilyCertification SourceFamily = "certification"
)

// Category is the scoring category a record counts toward. Source-specific
// codes are mapped into this small set at the adapter boundary.
type Category string

const (
	CategoryHousing      Category = "housing"
	CategoryConstruction Category = "construction"
	CategoryEquipment    Category = "equipment"
	CategoryElectrical   Category = "electrical"
)

// Valid reports whether c is a known scoring category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHousing, CategoryConstruction, CategoryEquipment, CategoryElectrical:
		return true
	}
	return false
}

// RecordStatus is the source-reported state of a record. Sources that do not
// expose a usable status yield StatusUnknown, which scoring treats as open.
type RecordStatus string

const (
	StatusOpen    RecordStatus = "open"
	StatusClosed  RecordStatus = "closed"
	StatusUnknown RecordStatus = "unknown"
)

// SourceRecord domain model (maps to the source_records table).
// One row per (dataset, external_id). Sync upserts refresh the source-reported
// fields; the override columns (active, dismissed_*) belong to the Dismissal
// Coordinator and are never written by sync. Rows are never deleted.
type SourceRecord struct {
	RecordID   string       `db:"record_id"`   // UUID, PRIMARY KEY
	PropertyID string       `db:"property_id"` // UUID, NOT NULL, FK to properties
	Family     SourceFamily `db:"family"`      // NOT NULL
	Dataset    string       `db:"dataset"`     // NOT NULL, e.g. 'hpd_violations'
	ExternalID string       `db:"external_id"` // NOT NULL, unique per dataset
	Category   Category     `db:"category"`    // NOT NULL

	// Source-reported detail (nullable where the source omits it)
	Class       sql.NullString `db:"class"`    // e.g. HPD class A/B/C
	Severity    sql.NullString `db:"severity"` // dataset-specific severity label
	Status      RecordStatus   `db:"status"`   // NOT NULL, default 'unknown'
	IssuedAt    *time.Time     `db:"issued_at"`
	InspectedAt *time.Time     `db:"inspected_at"`
	Description sql.NullString `db:"description"`
	RawPayload  json.RawMessage `db:"raw_payload"` // JSONB, original source row

	// Override state (exactly one per record, embedded)
	Active        bool           `db:"active"` // NOT NULL, default true
	DismissedBy   sql.NullString `db:"dismissed_by"`
	DismissedAt   *time.Time     `db:"dismissed_at"`
	DismissReason sql.NullString `db:"dismiss_reason"`

	FirstSeenAt time.Time `db:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at"`
}

// CountsInScoring reports whether the record is a finding that scoring
// counts: an active (non-dismissed) violation or equipment record. Permits
// and certifications contribute bonuses, not findings.
func (r *SourceRecord) CountsInScoring() bool {
	if !r.Active {
		return false
	}
	return r.Family == FamilyViolation || r.Family == FamilyEquipment
}

// IsOpen treats unknown as open: a finding is only off the books once the
// source says so.
func (r *SourceRecord) IsOpen() bool {
	return r.Status != StatusClosed
}

// ToJSON converts to the HTTP response shape.
func (r *SourceRecord) ToJSON() map[string]any {
	m := map[string]any{
		"record_id":     r.RecordID,
		"property_id":   r.PropertyID,
		"family":        string(r.Family),
		"dataset":       r.Dataset,
		"external_id":   r.ExternalID,
		"category":      string(r.Category),
		"status":        string(r.Status),
		"active":        r.Active,
		"first_seen_at": r.FirstSeenAt,
		"last_seen_at":  r.LastSeenAt,
	}
	putNullable(m, "class", r.Class)
	putNullable(m, "severity", r.Severity)
	putNullable(m, "description", r.Description)
	putNullable(m, "dismissed_by", r.DismissedBy)
	putNullable(m, "dismiss_reason", r.DismissReason)
	if r.IssuedAt != nil {
		m["issued_at"] = r.IssuedAt
	} else {
		m["issued_at"] = nil
	}
	if r.InspectedAt != nil {
		m["inspected_at"] = r.InspectedAt
	} else {
		m["inspected_at"] = nil
	}
	if r.DismissedAt != nil {
		m["dismissed_at"] = r.DismissedAt
	} else {
		m["dismissed_at"] = nil
	}
	return m
}
