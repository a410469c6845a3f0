package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/propplyai/propply-ai-sub002/internal/domain"
	"github.com/propplyai/propply-ai-sub002/internal/events"
	"github.com/propplyai/propply-ai-sub002/internal/identity"
	"github.com/propplyai/propply-ai-sub002/internal/repository"
	"github.com/propplyai/propply-ai-sub002/internal/scoring"
	"github.com/propplyai/propply-ai-sub002/internal/sources"
	"github.com/propplyai/propply-ai-sub002/internal/store"
)

// In-memory stand-ins for the repository interfaces. The sync orchestrator
// calls some of them from adapter goroutines, so the ones on that path take
// a mutex.

type fakePropertiesRepo struct {
	properties map[string]*domain.Property
	backfilled map[string]string
	createErr  error
	nextID     int
}

func newFakePropertiesRepo(props ...*domain.Property) *fakePropertiesRepo {
	f := &fakePropertiesRepo{
		properties: map[string]*domain.Property{},
		backfilled: map[string]string{},
	}
	for _, p := range props {
		f.properties[p.PropertyID] = p
	}
	return f
}

func (f *fakePropertiesRepo) CreateProperty(ctx context.Context, property *domain.Property) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("prop-%d", f.nextID)
	stored := *property
	stored.PropertyID = id
	f.properties[id] = &stored
	return id, nil
}

func (f *fakePropertiesRepo) GetProperty(ctx context.Context, propertyID string) (*domain.Property, error) {
	p, ok := f.properties[propertyID]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	return p, nil
}

func (f *fakePropertiesRepo) BackfillBuildingID(ctx context.Context, propertyID, buildingID string) error {
	f.backfilled[propertyID] = buildingID
	return nil
}

func (f *fakePropertiesRepo) ListPropertyIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.properties))
	for id := range f.properties {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeRecordsRepo struct {
	mu         sync.Mutex
	records    map[string]*domain.SourceRecord
	active     map[string][]domain.SourceRecord
	listed     []*domain.SourceRecord
	gotFilters []repository.RecordFilters
	upserted   map[string][]sources.NormalizedRecord
	upsertErr  map[string]error
	listErr    error
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{
		records:   map[string]*domain.SourceRecord{},
		active:    map[string][]domain.SourceRecord{},
		upserted:  map[string][]sources.NormalizedRecord{},
		upsertErr: map[string]error{},
	}
}

func (f *fakeRecordsRepo) UpsertRecords(ctx context.Context, propertyID string, records []sources.NormalizedRecord) (*repository.UpsertStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(records) == 0 {
		return &repository.UpsertStats{}, nil
	}
	dataset := records[0].Dataset
	if err := f.upsertErr[dataset]; err != nil {
		return nil, err
	}
	f.upserted[dataset] = append(f.upserted[dataset], records...)
	// landed records become active, the way the real upsert leaves them
	for _, r := range records {
		f.active[propertyID] = append(f.active[propertyID], domain.SourceRecord{
			PropertyID: propertyID,
			Family:     r.Family,
			Dataset:    r.Dataset,
			ExternalID: r.ExternalID,
			Category:   r.Category,
			Status:     r.Status,
			Active:     true,
		})
	}
	return &repository.UpsertStats{Inserted: len(records)}, nil
}

func (f *fakeRecordsRepo) GetRecord(ctx context.Context, recordID string) (*domain.SourceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[recordID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeRecordsRepo) ListRecords(ctx context.Context, propertyID string, filters repository.RecordFilters) ([]*domain.SourceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotFilters = append(f.gotFilters, filters)
	return f.listed, nil
}

func (f *fakeRecordsRepo) ListActiveRecords(ctx context.Context, propertyID string) ([]domain.SourceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active[propertyID], nil
}

func (f *fakeRecordsRepo) upsertedCount(dataset string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted[dataset])
}

// dismiss flips one record out of the active set, the committed effect of a
// dismissal transition.
func (f *fakeRecordsRepo) dismiss(propertyID, recordID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := make([]domain.SourceRecord, 0, len(f.active[propertyID]))
	for _, r := range f.active[propertyID] {
		if r.RecordID != recordID {
			kept = append(kept, r)
		}
	}
	f.active[propertyID] = kept
}

type cursorMark struct {
	dataset string
	errText string
	offset  int
}

type fakeCursorsRepo struct {
	mu        sync.Mutex
	cursors   map[string]*domain.SyncCursor
	list      []*domain.SyncCursor
	successes []cursorMark
	failures  []cursorMark
}

func newFakeCursorsRepo() *fakeCursorsRepo {
	return &fakeCursorsRepo{cursors: map[string]*domain.SyncCursor{}}
}

func cursorKey(propertyID, dataset string) string { return propertyID + "/" + dataset }

func (f *fakeCursorsRepo) GetCursor(ctx context.Context, propertyID, dataset string) (*domain.SyncCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.cursors[cursorKey(propertyID, dataset)]; ok {
		return c, nil
	}
	return &domain.SyncCursor{PropertyID: propertyID, Dataset: dataset}, nil
}

func (f *fakeCursorsRepo) MarkSuccess(ctx context.Context, propertyID, dataset string, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, cursorMark{dataset: dataset, offset: offset})
	return nil
}

func (f *fakeCursorsRepo) MarkError(ctx context.Context, propertyID, dataset, errText string, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, cursorMark{dataset: dataset, errText: errText, offset: offset})
	return nil
}

func (f *fakeCursorsRepo) ListByProperty(ctx context.Context, propertyID string) ([]*domain.SyncCursor, error) {
	return f.list, nil
}

// fakeScoresRepo plays the locked recompute: RecomputeSnapshot reads the
// records fake's active set at call time, the way the real repo re-reads it
// inside the property-locked transaction.
type fakeScoresRepo struct {
	mu         sync.Mutex
	records    *fakeRecordsRepo
	snapshots  map[string]*domain.ScoreSnapshot
	recomputes int
	getErr     error
}

func newFakeScoresRepo(records *fakeRecordsRepo) *fakeScoresRepo {
	return &fakeScoresRepo{records: records, snapshots: map[string]*domain.ScoreSnapshot{}}
}

func (f *fakeScoresRepo) RecomputeSnapshot(ctx context.Context, propertyID string, rescore repository.RescoreFunc) (*domain.ScoreSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active, err := f.records.ListActiveRecords(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	snapshot, err := rescore(propertyID, active)
	if err != nil {
		return nil, err
	}
	f.recomputes++
	f.snapshots[propertyID] = snapshot
	return snapshot, nil
}

func (f *fakeScoresRepo) GetSnapshot(ctx context.Context, propertyID string) (*domain.ScoreSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.snapshots[propertyID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return s, nil
}

// fakeDismissalsRepo plays the transaction: on success it invokes the
// rescore callback with its canned post-transition record set, the way the
// real repo does inside the property lock.
type fakeDismissalsRepo struct {
	propertyID string
	active     []domain.SourceRecord
	guardErr   error
	calls      int
	lastActor  string
	lastReason string
}

func (f *fakeDismissalsRepo) Dismiss(ctx context.Context, recordID, actor, reason string, rescore repository.RescoreFunc) (*domain.ScoreSnapshot, error) {
	f.calls++
	if f.guardErr != nil {
		return nil, f.guardErr
	}
	f.lastActor = actor
	f.lastReason = reason
	return rescore(f.propertyID, f.active)
}

func (f *fakeDismissalsRepo) Restore(ctx context.Context, recordID, actor string, rescore repository.RescoreFunc) (*domain.ScoreSnapshot, error) {
	f.calls++
	if f.guardErr != nil {
		return nil, f.guardErr
	}
	f.lastActor = actor
	return rescore(f.propertyID, f.active)
}

type fakeAuditRepo struct {
	entries map[string][]*domain.DismissalAudit
}

func (f *fakeAuditRepo) ListByRecord(ctx context.Context, recordID string) ([]*domain.DismissalAudit, error) {
	return f.entries[recordID], nil
}

type fakeConfigsRepo struct {
	configs map[domain.Municipality]*scoring.Config
	getErr  error
}

func newFakeConfigsRepo() *fakeConfigsRepo {
	return &fakeConfigsRepo{configs: map[domain.Municipality]*scoring.Config{}}
}

func (f *fakeConfigsRepo) GetConfig(ctx context.Context, municipality domain.Municipality) (*scoring.Config, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.configs[municipality], nil
}

func (f *fakeConfigsRepo) SaveConfig(ctx context.Context, cfg *scoring.Config) error {
	f.configs[cfg.Municipality] = cfg
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.ScoreEvent
}

func (f *fakePublisher) PublishScoreEvent(ctx context.Context, event *events.ScoreEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) triggers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Trigger)
	}
	return out
}

type fakeKV struct {
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	// for tests, return all keys regardless of pattern
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// fakeAdapter is one scripted dataset. When unblock is set, Fetch parks on
// it so tests can hold a sync run open.
type fakeAdapter struct {
	dataset    string
	family     domain.SourceFamily
	strategies []identity.Strategy
	result     *sources.FetchResult
	err        error
	started    chan struct{}
	unblock    chan struct{}

	mu      sync.Mutex
	fetches []sources.Cursor
}

func (f *fakeAdapter) Dataset() string                   { return f.dataset }
func (f *fakeAdapter) Family() domain.SourceFamily       { return f.family }
func (f *fakeAdapter) Municipality() domain.Municipality { return domain.MunicipalityNYC }
func (f *fakeAdapter) Strategies() []identity.Strategy   { return f.strategies }

func (f *fakeAdapter) Fetch(ctx context.Context, q *identity.Query, cur sources.Cursor) (*sources.FetchResult, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, cur)
	f.mu.Unlock()
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.unblock != nil {
		<-f.unblock
	}
	if f.result == nil {
		return nil, f.err
	}
	res := *f.result
	return &res, f.err
}

func (f *fakeAdapter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func normalized(dataset string, family domain.SourceFamily, cat domain.Category, externalID, strongID string) sources.NormalizedRecord {
	return sources.NormalizedRecord{
		Dataset:    dataset,
		Family:     family,
		Category:   cat,
		ExternalID: externalID,
		BuildingID: strongID,
		Status:     domain.StatusOpen,
		Raw:        json.RawMessage(`{"row":"` + externalID + `"}`),
	}
}

func openViolation(propertyID, recordID string, cat domain.Category) domain.SourceRecord {
	return domain.SourceRecord{
		RecordID:   recordID,
		PropertyID: propertyID,
		Family:     domain.FamilyViolation,
		Dataset:    "hpd_violations",
		ExternalID: recordID,
		Category:   cat,
		Status:     domain.StatusOpen,
		Active:     true,
	}
}

func nycTestProperty(id string) *domain.Property {
	return &domain.Property{
		PropertyID:   id,
		Address:      "350 5th Ave, Manhattan",
		Municipality: domain.MunicipalityNYC,
		BuildingID:   sql.NullString{String: "1089310", Valid: true},
		ParcelID:     sql.NullString{String: "1008350041", Valid: true},
	}
}

func phillyTestProperty(id string) *domain.Property {
	return &domain.Property{
		PropertyID:    id,
		Address:       "1500 Market St",
		Municipality:  domain.MunicipalityPhiladelphia,
		AccountNumber: sql.NullString{String: "883065000", Valid: true},
	}
}

func weakTestProperty(id string) *domain.Property {
	return &domain.Property{
		PropertyID:   id,
		Address:      "255 Water St, Brooklyn",
		Municipality: domain.MunicipalityNYC,
		Block:        sql.NullString{String: "835", Valid: true},
		Lot:          sql.NullString{String: "41", Valid: true},
	}
}
