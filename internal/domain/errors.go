package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for state guards and lookups. Callers branch with errors.Is.
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrSnapshotNotFound = errors.New("score snapshot not found")

	// ErrAlreadyDismissed / ErrNotDismissed: dismiss and restore are guarded
	// transitions, not idempotent writes. The rejected call is still audited.
	ErrAlreadyDismissed = errors.New("record already dismissed")
	ErrNotDismissed     = errors.New("record not dismissed")

	// ErrSyncInProgress: a property admits one sync run at a time; concurrent
	// requests are rejected, not queued.
	ErrSyncInProgress = errors.New("sync already in progress for property")

	// ErrIdentityAmbiguous: a weak-identifier batch failed the contamination
	// policy and was rejected whole.
	ErrIdentityAmbiguous = errors.New("ambiguous identity match")

	// ErrSourceUnavailable: a municipal API stayed unreachable after retries.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDuplicateIdentifier: an external identifier may map to at most one
	// property within a municipality.
	ErrDuplicateIdentifier = errors.New("identifier already registered in municipality")
)

// SourceError carries which dataset failed and the last HTTP status, so sync
// reports and logs stay actionable. Matches ErrSourceUnavailable under errors.Is.
type SourceError struct {
	Dataset    string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("source %s unavailable (status %d): %v", e.Dataset, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s unavailable: %v", e.Dataset, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }
