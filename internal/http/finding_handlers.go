package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/service"
)

const findingsBase = "/compliance/api/v1/findings"

// FindingHandler serves single findings and their review transitions.
type FindingHandler struct {
	findings   service.FindingService
	dismissals service.DismissalService
	logger     *zap.Logger
}

func NewFindingHandler(findings service.FindingService, dismissals service.DismissalService, logger *zap.Logger) *FindingHandler {
	return &FindingHandler{
		findings:   findings,
		dismissals: dismissals,
		logger:     logger,
	}
}

// dismissRequest carries the reviewer identity; authentication happens
// upstream, the actor string is stored as given.
type dismissRequest struct {
	DismissedBy string `json:"dismissed_by"`
	Reason      string `json:"reason"`
}

type restoreRequest struct {
	RestoredBy string `json:"restored_by"`
}

func recordIDFrom(path, suffix string) string {
	id := strings.TrimSuffix(path, suffix)
	id = strings.TrimPrefix(id, findingsBase+"/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func (h *FindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/dismiss") && r.Method == http.MethodPost:
		if id := recordIDFrom(path, "/dismiss"); id != "" {
			h.DismissFinding(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/restore") && r.Method == http.MethodPost:
		if id := recordIDFrom(path, "/restore"); id != "" {
			h.RestoreFinding(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/audit") && r.Method == http.MethodGet:
		if id := recordIDFrom(path, "/audit"); id != "" {
			h.GetAuditTrail(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasPrefix(path, findingsBase+"/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, findingsBase+"/")
		if id != "" && !strings.Contains(id, "/") {
			h.GetFinding(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *FindingHandler) GetFinding(w http.ResponseWriter, r *http.Request, recordID string) {
	record, err := h.findings.GetFinding(r.Context(), recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(record.ToJSON()))
}

func (h *FindingHandler) DismissFinding(w http.ResponseWriter, r *http.Request, recordID string) {
	var req dismissRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DismissedBy) == "" {
		writeBadRequest(w, "dismissed_by is required")
		return
	}

	snapshot, err := h.dismissals.DismissFinding(r.Context(), recordID, req.DismissedBy, req.Reason)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("DismissFinding failed",
				zap.String("record_id", recordID),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot.ToJSON()))
}

func (h *FindingHandler) RestoreFinding(w http.ResponseWriter, r *http.Request, recordID string) {
	var req restoreRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RestoredBy) == "" {
		writeBadRequest(w, "restored_by is required")
		return
	}

	snapshot, err := h.dismissals.RestoreFinding(r.Context(), recordID, req.RestoredBy)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("RestoreFinding failed",
				zap.String("record_id", recordID),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot.ToJSON()))
}

func (h *FindingHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request, recordID string) {
	trail, err := h.dismissals.GetAuditTrail(r.Context(), recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(trail))
	for _, entry := range trail {
		out = append(out, entry.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}
