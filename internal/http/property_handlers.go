package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/service"
)

const propertiesBase = "/compliance/api/v1/properties"

// PropertyHandler serves property registration and the per-property
// sync, score and finding views.
type PropertyHandler struct {
	properties service.PropertyService
	syncs      service.SyncService
	scores     service.ScoreService
	findings   service.FindingService
	logger     *zap.Logger
}

func NewPropertyHandler(
	properties service.PropertyService,
	syncs service.SyncService,
	scores service.ScoreService,
	findings service.FindingService,
	logger *zap.Logger,
) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		syncs:      syncs,
		scores:     scores,
		findings:   findings,
		logger:     logger,
	}
}

// subResourceID extracts {id} from /compliance/api/v1/properties/{id}<suffix>.
func subResourceID(path, suffix string) string {
	id := strings.TrimSuffix(path, suffix)
	id = strings.TrimPrefix(id, propertiesBase+"/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// ServeHTTP routes the property tree. More specific suffixes are matched
// before the bare {id} case.
func (h *PropertyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == propertiesBase && r.Method == http.MethodPost:
		h.RegisterProperty(w, r)
	case path == propertiesBase || path == propertiesBase+"/":
		w.WriteHeader(http.StatusMethodNotAllowed)
	case strings.HasSuffix(path, "/sync") && r.Method == http.MethodPost:
		if id := subResourceID(path, "/sync"); id != "" {
			h.SyncProperty(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/sync-status") && r.Method == http.MethodGet:
		if id := subResourceID(path, "/sync-status"); id != "" {
			h.GetSyncStatus(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/score/rebuild") && r.Method == http.MethodPost:
		if id := subResourceID(path, "/score/rebuild"); id != "" {
			h.RebuildScore(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/score") && r.Method == http.MethodGet:
		if id := subResourceID(path, "/score"); id != "" {
			h.GetScore(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasSuffix(path, "/findings") && r.Method == http.MethodGet:
		if id := subResourceID(path, "/findings"); id != "" {
			h.ListFindings(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasPrefix(path, propertiesBase+"/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, propertiesBase+"/")
		if id != "" && !strings.Contains(id, "/") {
			h.GetProperty(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *PropertyHandler) RegisterProperty(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterPropertyRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	property, err := h.properties.RegisterProperty(r.Context(), req)
	if err != nil {
		h.logger.Error("RegisterProperty failed",
			zap.String("address", req.Address),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(property.ToJSON()))
}

func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request, propertyID string) {
	property, err := h.properties.GetProperty(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(property.ToJSON()))
}

func (h *PropertyHandler) SyncProperty(w http.ResponseWriter, r *http.Request, propertyID string) {
	report, err := h.syncs.SyncProperty(r.Context(), propertyID)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("SyncProperty failed",
				zap.String("property_id", propertyID),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(report.ToJSON()))
}

func (h *PropertyHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request, propertyID string) {
	cursors, err := h.syncs.GetSyncStatus(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(cursors))
	for _, c := range cursors {
		out = append(out, c.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

func (h *PropertyHandler) GetScore(w http.ResponseWriter, r *http.Request, propertyID string) {
	snapshot, err := h.scores.GetScore(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot.ToJSON()))
}

func (h *PropertyHandler) RebuildScore(w http.ResponseWriter, r *http.Request, propertyID string) {
	snapshot, err := h.scores.RebuildScore(r.Context(), propertyID)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.Error("RebuildScore failed",
				zap.String("property_id", propertyID),
				zap.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot.ToJSON()))
}

func (h *PropertyHandler) ListFindings(w http.ResponseWriter, r *http.Request, propertyID string) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	includeDismissed := parseBool(r.URL.Query().Get("include_dismissed"))

	if category != "" && !domain.Category(category).Valid() {
		writeBadRequest(w, fmt.Sprintf("unknown category %q", category))
		return
	}

	records, err := h.findings.ListFindings(r.Context(), propertyID, category, includeDismissed)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}
