package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/ghostwatch/internal/app"
	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/models"
	"github.com/bobmcallan/ghostwatch/internal/services/limit"
	"github.com/bobmcallan/ghostwatch/internal/services/portfolio"
	"github.com/bobmcallan/ghostwatch/internal/services/snapshot"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

const testLimitKey = "ghostfolio_limit_low_a1_aapl_test"

// stubSnapshots implements interfaces.SnapshotService.
type stubSnapshots struct {
	mu      sync.Mutex
	current *models.Snapshot
	next    *models.Snapshot
	err     error
}

func (s *stubSnapshots) Refresh(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.current = s.next
	return s.current, nil
}

func (s *stubSnapshots) Current() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// stubReconciler implements interfaces.EntityReconciler, treating every
// account in the snapshot as one entity.
type stubReconciler struct {
	known []models.EntityDescriptor
}

func (r *stubReconciler) Reconcile(snap *models.Snapshot) []models.EntityDescriptor {
	var added []models.EntityDescriptor
	for _, acct := range snap.ActiveAccounts() {
		ref := models.EntityRef{Kind: models.KindAccount, ScopeID: acct.ID, ConnectionID: "test"}
		seen := false
		for _, k := range r.known {
			if k.Key == ref.Key() {
				seen = true
			}
		}
		if !seen {
			d := models.EntityDescriptor{Key: ref.Key(), Ref: ref, Name: acct.Name}
			r.known = append(r.known, d)
			added = append(added, d)
		}
	}
	return added
}

func (r *stubReconciler) Known() []models.EntityDescriptor {
	out := append([]models.EntityDescriptor{}, r.known...)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// stubPortfolio implements interfaces.PortfolioService.
type stubPortfolio struct {
	summary   *models.PortfolioSummary
	holdings  []models.HoldingView
	watchlist []models.WatchlistView
	err       error
}

func (p *stubPortfolio) Summary(ctx context.Context) (*models.PortfolioSummary, error) {
	return p.summary, p.err
}

func (p *stubPortfolio) Holdings(ctx context.Context) ([]models.HoldingView, error) {
	return p.holdings, p.err
}

func (p *stubPortfolio) Watchlist(ctx context.Context) ([]models.WatchlistView, error) {
	return p.watchlist, p.err
}

// memLimitStore implements interfaces.LimitStore in memory.
type memLimitStore struct {
	mu      sync.Mutex
	records map[string]*models.LimitRecord
	getErr  error
}

func newMemLimitStore() *memLimitStore {
	return &memLimitStore{records: map[string]*models.LimitRecord{}}
}

func (m *memLimitStore) GetLimit(ctx context.Context, key string) (*models.LimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", limitdb.ErrNotFound, key)
	}
	cp := *rec
	return &cp, nil
}

func (m *memLimitStore) SetLimit(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := 1
	if rec, ok := m.records[key]; ok {
		version = rec.Version + 1
	}
	m.records[key] = &models.LimitRecord{Key: key, Value: value, Version: version, DateTime: time.Now()}
	return nil
}

func (m *memLimitStore) DeleteLimit(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *memLimitStore) ListLimits(ctx context.Context) ([]*models.LimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LimitRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memLimitStore) Close() error { return nil }

type testDeps struct {
	snapshots  *stubSnapshots
	portfolio  *stubPortfolio
	reconciler *stubReconciler
	store      *memLimitStore
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	logger := common.NewSilentLogger()
	deps := &testDeps{
		snapshots:  &stubSnapshots{},
		portfolio:  &stubPortfolio{err: portfolio.ErrNoSnapshot},
		reconciler: &stubReconciler{},
		store:      newMemLimitStore(),
	}
	a := &app.App{
		Config:      common.NewDefaultConfig(),
		Logger:      logger,
		Snapshots:   deps.snapshots,
		Reconciler:  deps.reconciler,
		Limits:      limit.NewService(deps.store, logger),
		Portfolio:   deps.portfolio,
		MCPServer:   mcpserver.NewMCPServer("ghostwatch-test", "0.0.0"),
		StartupTime: time.Now(),
	}
	return NewServer(a), deps
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Accounts: []models.Account{
			{ID: "a1", Name: "Main"},
			{ID: "a2", Name: "Hidden", IsExcluded: true},
		},
		BaseCurrency: "USD",
		FetchedAt:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleHealth_DegradedBeforeFirstSnapshot(t *testing.T) {
	s, _ := newTestServer(t)

	rr := serve(s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	decodeBody(t, rr, &body)
	assert.Equal(t, "degraded", body["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestHandleHealth_OKAfterRefresh(t *testing.T) {
	s, deps := newTestServer(t)
	deps.snapshots.next = sampleSnapshot()

	rr := serve(s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = serve(s, http.MethodGet, "/api/health", "")
	var body map[string]interface{}
	decodeBody(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestHandleVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rr := serve(s, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var info common.VersionInfo
	decodeBody(t, rr, &info)
	assert.Equal(t, common.GetVersion(), info.Version)
}

func TestHandleConfig_MasksAccessToken(t *testing.T) {
	s, _ := newTestServer(t)
	s.app.Config.Ghostfolio.AccessToken = "super-secret"

	rr := serve(s, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "super-secret")
	assert.Contains(t, rr.Body.String(), "connection_id")
	assert.Equal(t, "super-secret", s.app.Config.Ghostfolio.AccessToken, "live config must not be modified")
}

func TestReadEndpoints_NoSnapshotReturns503(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/api/snapshot", "/api/portfolio", "/api/holdings", "/api/watchlist"} {
		t.Run(path, func(t *testing.T) {
			rr := serve(s, http.MethodGet, path, "")
			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

			var body ErrorResponse
			decodeBody(t, rr, &body)
			assert.Equal(t, "no_snapshot", body.Code)
		})
	}
}

func TestReadEndpoints_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rr := serve(s, http.MethodPost, "/api/holdings", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET", rr.Header().Get("Allow"))

	rr = serve(s, http.MethodGet, "/api/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleSnapshot_ReturnsCurrent(t *testing.T) {
	s, deps := newTestServer(t)
	deps.snapshots.current = sampleSnapshot()

	rr := serve(s, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap models.Snapshot
	decodeBody(t, rr, &snap)
	assert.Equal(t, "USD", snap.BaseCurrency)
	assert.Len(t, snap.Accounts, 2)
}

func TestHandleHoldings_FiltersByAccount(t *testing.T) {
	s, deps := newTestServer(t)
	deps.portfolio.err = nil
	deps.portfolio.holdings = []models.HoldingView{
		{AccountID: "a1", Holding: models.Holding{Symbol: "AAPL"}},
		{AccountID: "b2", Holding: models.Holding{Symbol: "VOO"}},
	}

	rr := serve(s, http.MethodGet, "/api/holdings?account=b2", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Holdings []models.HoldingView `json:"holdings"`
	}
	decodeBody(t, rr, &body)
	require.Len(t, body.Holdings, 1)
	assert.Equal(t, "VOO", body.Holdings[0].Holding.Symbol)
}

func TestHandlePortfolio_InternalError(t *testing.T) {
	s, deps := newTestServer(t)
	deps.portfolio.err = errors.New("boom")

	rr := serve(s, http.MethodGet, "/api/portfolio", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandleRefresh_ReturnsNewEntitiesOnce(t *testing.T) {
	s, deps := newTestServer(t)
	deps.snapshots.next = sampleSnapshot()

	rr := serve(s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		NewEntities []models.EntityDescriptor `json:"new_entities"`
		Status      app.CycleStatus           `json:"status"`
	}
	decodeBody(t, rr, &body)
	require.Len(t, body.NewEntities, 1)
	assert.Equal(t, models.EntityKey("ghostfolio_account_a1_test"), body.NewEntities[0].Key)
	assert.Equal(t, 1, body.Status.Cycles)

	rr = serve(s, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &body)
	assert.Empty(t, body.NewEntities)
	assert.Equal(t, 2, body.Status.Cycles)

	rr = serve(s, http.MethodGet, "/api/entities?kind=account", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var entities struct {
		Entities []models.EntityDescriptor `json:"entities"`
	}
	decodeBody(t, rr, &entities)
	assert.Len(t, entities.Entities, 1)
}

func TestHandleRefresh_FailureReturns502(t *testing.T) {
	s, deps := newTestServer(t)
	deps.snapshots.err = fmt.Errorf("%w: accounts: timeout", snapshot.ErrUpdateFailed)

	rr := serve(s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var body ErrorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "update_failed", body.Code)
	assert.Equal(t, 1, s.app.Status().Failures)
}

func TestHandleLimits_Lifecycle(t *testing.T) {
	s, deps := newTestServer(t)
	path := "/api/limits/" + testLimitKey

	rr := serve(s, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(s, http.MethodPut, path, `{"value": 123.456}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rec models.LimitRecord
	decodeBody(t, rr, &rec)
	assert.Equal(t, "123.46", rec.Value)

	rr = serve(s, http.MethodGet, "/api/limits", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Limits []models.LimitRecord `json:"limits"`
	}
	decodeBody(t, rr, &list)
	require.Len(t, list.Limits, 1)
	assert.Equal(t, testLimitKey, list.Limits[0].Key)

	rr = serve(s, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, deps.store.records)
}

func TestHandleLimits_ZeroClears(t *testing.T) {
	s, deps := newTestServer(t)
	path := "/api/limits/" + testLimitKey

	rr := serve(s, http.MethodPut, path, `{"value": 50}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, http.MethodPut, path, `{"value": 0}`)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, deps.store.records)
}

func TestHandleLimits_PutReadBackFailureIsNotCleared(t *testing.T) {
	s, deps := newTestServer(t)
	deps.store.getErr = errors.New("disk failure")

	rr := serve(s, http.MethodPut, "/api/limits/"+testLimitKey, `{"value": 50}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "disk failure")
	assert.Len(t, deps.store.records, 1, "value was stored before the read-back failed")
}

func TestHandleLimits_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"holding key is not a limit", http.MethodGet, "/api/limits/ghostfolio_holding_a1_aapl_test", "", http.StatusBadRequest},
		{"value above range", http.MethodPut, "/api/limits/" + testLimitKey, `{"value": 900000.01}`, http.StatusBadRequest},
		{"negative value", http.MethodPut, "/api/limits/" + testLimitKey, `{"value": -5}`, http.StatusBadRequest},
		{"missing value", http.MethodPut, "/api/limits/" + testLimitKey, `{}`, http.StatusBadRequest},
		{"invalid json", http.MethodPut, "/api/limits/" + testLimitKey, `{"value":`, http.StatusBadRequest},
		{"unsupported method", http.MethodPost, "/api/limits/" + testLimitKey, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestHandleShutdown_DisabledInProduction(t *testing.T) {
	s, _ := newTestServer(t)
	s.app.Config.Environment = "production"

	rr := serve(s, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleShutdown_SignalsChannel(t *testing.T) {
	s, _ := newTestServer(t)
	ch := make(chan struct{}, 1)
	s.SetShutdownChannel(ch)

	rr := serve(s, http.MethodPost, "/api/shutdown", "")
	require.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown channel was not signalled")
	}
}
