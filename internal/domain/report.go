package domain

import (
	"time"
)

// DatasetStatus is the per-dataset outcome of one sync run.
type DatasetStatus string

const (
	DatasetSuccess DatasetStatus = "success"
	DatasetPartial DatasetStatus = "partial" // some pages landed before a failure
	DatasetFailed  DatasetStatus = "failed"
	DatasetSkipped DatasetStatus = "skipped" // no usable identifier for this dataset
)

// DatasetReport is one dataset's row in a SyncReport.
type DatasetReport struct {
	Dataset  string        `json:"dataset"`
	Family   SourceFamily  `json:"family"`
	Status   DatasetStatus `json:"status"`
	Fetched  int           `json:"fetched"`           // records returned by the source
	Accepted int           `json:"accepted"`          // records surviving identity filtering
	Warning  string        `json:"warning,omitempty"` // e.g. ambiguous-identity rejection
	Error    string        `json:"error,omitempty"`
}

// SyncReport summarizes one orchestrated sync run for a property. A run with
// failed datasets still carries the results of the ones that succeeded.
// RunID ties the report to the run's log lines.
type SyncReport struct {
	RunID      string          `json:"run_id"`
	PropertyID string          `json:"property_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Datasets   []DatasetReport `json:"datasets"`
	Snapshot   *ScoreSnapshot  `json:"-"`
}

// Failed counts datasets that produced no usable result.
func (r *SyncReport) Failed() int {
	n := 0
	for _, d := range r.Datasets {
		if d.Status == DatasetFailed {
			n++
		}
	}
	return n
}

// ToJSON converts to the HTTP response shape.
func (r *SyncReport) ToJSON() map[string]any {
	m := map[string]any{
		"run_id":      r.RunID,
		"property_id": r.PropertyID,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"datasets":    r.Datasets,
	}
	if r.Snapshot != nil {
		m["snapshot"] = r.Snapshot.ToJSON()
	}
	return m
}
