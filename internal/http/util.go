package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func parseBool(s string) bool {
	return s == "true" || s == "1"
}

// statusFor maps domain errors onto HTTP statuses: missing things are 404,
// state-guard rejections are 409, everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPropertyNotFound),
		errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyDismissed),
		errors.Is(err, domain.ErrNotDismissed),
		errors.Is(err, domain.ErrSyncInProgress),
		errors.Is(err, domain.ErrDuplicateIdentifier):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Fail(err.Error()))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Fail(message))
}
