//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/pricing"
	"github.com/mega-minerals/oreflow/internal/store"
)

func newTestRouter(t *testing.T, st store.Store) http.Handler {
	t.Helper()
	return newRouter(context.Background(), st, pricing.DefaultCalendar(), []string{"*"})
}

func doGet(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealth(t *testing.T) {
	setTestConfig(t)
	router := newTestRouter(t, newTestStore(t))

	rr := doGet(t, router, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRouterViews(t *testing.T) {
	setTestConfig(t)
	st := newTestStore(t)
	seedFacts(t, st)
	_, err := executeRun(context.Background(), st, pricing.DefaultCalendar())
	require.NoError(t, err)
	router := newTestRouter(t, st)

	rr := doGet(t, router, "/api/views/port_inventory")
	require.Equal(t, http.StatusOK, rr.Code)
	var inv []model.PortInventorySnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))
	require.Len(t, inv, 2)
	assert.Equal(t, "PORT_A", inv[0].Site)
	// rail_in 60000 then ship_load -20000.
	assert.Equal(t, 60000.0, inv[0].TonnesOnHand)
	assert.Equal(t, 40000.0, inv[1].TonnesOnHand)

	rr = doGet(t, router, "/api/views/vessel_coverage")
	require.Equal(t, http.StatusOK, rr.Code)
	var cov []model.VesselCoverage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cov))
	require.Len(t, cov, 1)
	assert.Equal(t, "V1", cov[0].VesselID)
	assert.Equal(t, "C-1", cov[0].ContractID)
}

func TestRouterUnknownView(t *testing.T) {
	setTestConfig(t)
	router := newTestRouter(t, newTestStore(t))

	rr := doGet(t, router, "/api/views/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown view")
}

func TestRouterSemanticFilters(t *testing.T) {
	setTestConfig(t)
	st := newTestStore(t)
	seedFacts(t, st)
	_, err := executeRun(context.Background(), st, pricing.DefaultCalendar())
	require.NoError(t, err)
	router := newTestRouter(t, st)

	rr := doGet(t, router, "/api/semantic?record_type=port_inventory&limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []model.SemanticRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, model.RecordPortInventory, recs[0].RecordType)

	// No match: empty array, never null.
	rr = doGet(t, router, "/api/semantic?customer_name=NOBODY")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestRouterRuns(t *testing.T) {
	setTestConfig(t)
	st := newTestStore(t)
	seedFacts(t, st)
	run, err := executeRun(context.Background(), st, pricing.DefaultCalendar())
	require.NoError(t, err)
	router := newTestRouter(t, st)

	rr := doGet(t, router, "/api/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	rr = doGet(t, router, "/api/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doGet(t, router, "/api/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestRouterTriggerRun(t *testing.T) {
	setTestConfig(t)
	st := newTestStore(t)
	seedFacts(t, st)
	router := newTestRouter(t, st)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rr.Body.String())

	// The recompute is asynchronous; wait for the run record to land.
	require.Eventually(t, func() bool {
		runs, err := st.ListRuns(context.Background(), 10)
		return err == nil && len(runs) == 1 && runs[0].Status == model.RunStatusPublished
	}, 5*time.Second, 20*time.Millisecond)
}
