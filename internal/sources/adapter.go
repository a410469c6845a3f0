// Package sources fetches and normalizes municipal compliance data. Each
// dataset gets one adapter that knows its wire API, its field names, and its
// status vocabulary; nothing outside an adapter ever sees a source field.
package sources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
)

// Cursor is the resume point for a dataset: the row offset to continue from
// after a run that stopped at the page cap or failed mid-pagination.
type Cursor struct {
	Offset int
}

// NormalizedRecord is a source row translated to the internal vocabulary,
// not yet persisted. Pointer fields stay nil when the source omits the value.
type NormalizedRecord struct {
	Dataset     string
	Family      domain.SourceFamily
	Category    domain.Category
	ExternalID  string
	BuildingID  string // strong id embedded in the source row, "" if absent
	Class       *string
	Severity    *string
	Status      domain.RecordStatus
	IssuedAt    *time.Time
	InspectedAt *time.Time
	Description *string
	Raw         json.RawMessage
}

// FetchResult is one adapter run. Records may be non-empty even when Fetch
// also returns an error: pages that landed before the failure are kept so the
// orchestrator can persist them and mark the dataset partial.
type FetchResult struct {
	Records    []NormalizedRecord
	NextOffset int  // resume offset; meaningful only when !Exhausted
	Exhausted  bool // the source had no more rows for this query
}

// Adapter is one dataset of one municipality.
type Adapter interface {
	// Dataset is the stable internal name, e.g. "hpd_violations".
	Dataset() string
	Family() domain.SourceFamily
	Municipality() domain.Municipality
	// Strategies lists the identity strategies this dataset can be queried
	// by, strongest first.
	Strategies() []identity.Strategy
	Fetch(ctx context.Context, q *identity.Query, cur Cursor) (*FetchResult, error)
}

// Candidates projects fetched records into the resolver's view of the batch.
func Candidates(records []NormalizedRecord) []identity.Candidate {
	cands := make([]identity.Candidate, 0, len(records))
	for i := range records {
		cands = append(cands, identity.Candidate{Index: i, StrongID: records[i].BuildingID})
	}
	return cands
}

// Select returns the records at the accepted indexes, in order.
func Select(records []NormalizedRecord, accepted []int) []NormalizedRecord {
	if len(accepted) == 0 {
		return nil
	}
	out := make([]NormalizedRecord, 0, len(accepted))
	for _, i := range accepted {
		out = append(out, records[i])
	}
	return out
}
