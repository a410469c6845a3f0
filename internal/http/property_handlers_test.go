package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/service"
)

// fakeCompliance implements every service interface the handlers depend on.
// When err is set, every call fails with it.
type fakeCompliance struct {
	property *domain.Property
	report   *domain.SyncReport
	snapshot *domain.ScoreSnapshot
	records  []*domain.SourceRecord
	finding  *domain.SourceRecord
	cursors  []*domain.SyncCursor
	trail    []*domain.DismissalAudit
	err      error

	gotCategory  string
	gotDismissed bool
	lastActor    string
	lastReason   string
}

func (f *fakeCompliance) RegisterProperty(ctx context.Context, req service.RegisterPropertyRequest) (*domain.Property, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.property, nil
}

func (f *fakeCompliance) GetProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.property, nil
}

func (f *fakeCompliance) SyncProperty(ctx context.Context, propertyID string) (*domain.SyncReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeCompliance) GetSyncStatus(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cursors, nil
}

func (f *fakeCompliance) GetScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeCompliance) RebuildScore(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeCompliance) ListFindings(ctx context.Context, propertyID, category string, includeDismissed bool) ([]*domain.SourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotCategory = category
	f.gotDismissed = includeDismissed
	return f.records, nil
}

func (f *fakeCompliance) GetFinding(ctx context.Context, recordID string) (*domain.SourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.finding, nil
}

func (f *fakeCompliance) DismissFinding(ctx context.Context, recordID, actor, reason string) (*domain.ScoreSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastActor = actor
	f.lastReason = reason
	return f.snapshot, nil
}

func (f *fakeCompliance) RestoreFinding(ctx context.Context, recordID, actor string) (*domain.ScoreSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastActor = actor
	return f.snapshot, nil
}

func (f *fakeCompliance) GetAuditTrail(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trail, nil
}

func serveThrough(f *fakeCompliance, req *http.Request) *httptest.ResponseRecorder {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterComplianceRoutes(
		NewPropertyHandler(f, f, f, f, logger),
		NewFindingHandler(f, f, logger),
	)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func propertyFixture() *domain.Property {
	return &domain.Property{
		PropertyID:   "prop-1",
		Address:      "350 5th Ave, Manhattan",
		Municipality: domain.MunicipalityNYC,
		BuildingID:   sql.NullString{String: "1089310", Valid: true},
	}
}

func snapshotFixture() *domain.ScoreSnapshot {
	return &domain.ScoreSnapshot{
		PropertyID:   "prop-1",
		OverallScore: 85,
		RiskLevel:    domain.RiskGood,
		Categories: map[domain.Category]domain.CategoryScore{
			domain.CategoryHousing: {Score: 70, Active: 3, Open: 2},
		},
		ComputedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestRegisterProperty_WrapsResult(t *testing.T) {
	f := &fakeCompliance{property: propertyFixture()}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties",
		strings.NewReader(`{"address":"350 5th Ave, Manhattan","municipality":"nyc","building_id":"1089310"}`))
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":2000`) {
		t.Fatalf("expected wrapper code=2000, got: %s", body)
	}
	if !strings.Contains(body, `"property_id":"prop-1"`) || !strings.Contains(body, `"building_id":"1089310"`) {
		t.Fatalf("expected property payload, got: %s", body)
	}
}

func TestRegisterProperty_InvalidRequestIs400(t *testing.T) {
	f := &fakeCompliance{property: propertyFixture()}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties",
		strings.NewReader(`{"municipality":"nyc"}`))
	w := serveThrough(f, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "address is required") {
		t.Fatalf("expected validation message, got: %s", w.Body.String())
	}
}

func TestRegisterProperty_DuplicateIdentifierIs409(t *testing.T) {
	f := &fakeCompliance{err: domain.ErrDuplicateIdentifier}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties",
		strings.NewReader(`{"address":"350 5th Ave","municipality":"nyc","building_id":"1089310"}`))
	w := serveThrough(f, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"code":-1`) {
		t.Fatalf("expected error wrapper, got: %s", w.Body.String())
	}
}

func TestGetProperty_NotFoundIs404(t *testing.T) {
	f := &fakeCompliance{err: domain.ErrPropertyNotFound}

	req := httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties/prop-404", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSyncProperty_ReturnsReportWithSnapshot(t *testing.T) {
	f := &fakeCompliance{report: &domain.SyncReport{
		RunID:      "run-1",
		PropertyID: "prop-1",
		Datasets: []domain.DatasetReport{
			{Dataset: "hpd_violations", Family: domain.FamilyViolation, Status: domain.DatasetSuccess, Fetched: 4, Accepted: 4},
			{Dataset: "dob_permits", Family: domain.FamilyPermit, Status: domain.DatasetFailed, Error: "socrata 503"},
		},
		Snapshot: snapshotFixture(),
	}}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties/prop-1/sync", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"run_id":"run-1"`) {
		t.Fatalf("expected run id, got: %s", body)
	}
	if !strings.Contains(body, `"status":"failed"`) || !strings.Contains(body, "socrata 503") {
		t.Fatalf("expected failed dataset row, got: %s", body)
	}
	if !strings.Contains(body, `"overall_score":85`) {
		t.Fatalf("expected embedded snapshot, got: %s", body)
	}
}

func TestSyncProperty_InProgressIs409(t *testing.T) {
	f := &fakeCompliance{err: domain.ErrSyncInProgress}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties/prop-1/sync", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetScore_ReturnsSnapshot(t *testing.T) {
	f := &fakeCompliance{snapshot: snapshotFixture()}

	req := httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties/prop-1/score", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"risk_level":"GOOD"`) || !strings.Contains(body, `"housing"`) {
		t.Fatalf("expected snapshot payload, got: %s", body)
	}
}

func TestGetScore_NoSnapshotIs404(t *testing.T) {
	f := &fakeCompliance{err: domain.ErrSnapshotNotFound}

	req := httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties/prop-1/score", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRebuildScore_ReturnsSnapshot(t *testing.T) {
	f := &fakeCompliance{snapshot: snapshotFixture()}

	req := httptest.NewRequest(http.MethodPost, "/compliance/api/v1/properties/prop-1/score/rebuild", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"overall_score":85`) {
		t.Fatalf("expected rebuilt snapshot, got: %s", w.Body.String())
	}
}

func TestListFindings_ParsesQuery(t *testing.T) {
	rec := &domain.SourceRecord{
		RecordID:   "rec-1",
		PropertyID: "prop-1",
		Family:     domain.FamilyViolation,
		Dataset:    "hpd_violations",
		ExternalID: "v-1",
		Category:   domain.CategoryHousing,
		Status:     domain.StatusOpen,
		Active:     true,
	}
	f := &fakeCompliance{records: []*domain.SourceRecord{rec}}

	req := httptest.NewRequest(http.MethodGet,
		"/compliance/api/v1/properties/prop-1/findings?category=housing&include_dismissed=true", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.gotCategory != "housing" || !f.gotDismissed {
		t.Fatalf("expected query forwarded, got category=%q dismissed=%v", f.gotCategory, f.gotDismissed)
	}
	if !strings.Contains(w.Body.String(), `"record_id":"rec-1"`) {
		t.Fatalf("expected finding payload, got: %s", w.Body.String())
	}
}

func TestListFindings_UnknownCategoryIs400(t *testing.T) {
	f := &fakeCompliance{}

	req := httptest.NewRequest(http.MethodGet,
		"/compliance/api/v1/properties/prop-1/findings?category=plumbing", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if f.gotCategory != "" {
		t.Fatalf("service should not be reached on a bad category")
	}
}

func TestGetSyncStatus_ReturnsCursors(t *testing.T) {
	synced := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	f := &fakeCompliance{cursors: []*domain.SyncCursor{
		{PropertyID: "prop-1", Dataset: "dob_permits", LastSyncedAt: &synced},
		{PropertyID: "prop-1", Dataset: "hpd_violations", PageOffset: 1000,
			LastError: sql.NullString{String: "socrata 503", Valid: true}},
	}}

	req := httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties/prop-1/sync-status", nil)
	w := serveThrough(f, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"page_offset":1000`) || !strings.Contains(body, "socrata 503") {
		t.Fatalf("expected cursor rows, got: %s", body)
	}
}

func TestPropertyRoutes_MethodGuards(t *testing.T) {
	f := &fakeCompliance{property: propertyFixture()}

	// no property listing
	req := httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties", nil)
	if w := serveThrough(f, req); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on collection, got %d", w.Code)
	}

	// unknown subresource
	req = httptest.NewRequest(http.MethodGet, "/compliance/api/v1/properties/prop-1/unknown", nil)
	if w := serveThrough(f, req); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subresource, got %d", w.Code)
	}
}
