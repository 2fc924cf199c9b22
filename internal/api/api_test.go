package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hitrate-cli/internal/dashboard"
	"github.com/sells-group/hitrate-cli/internal/ingest"
	"github.com/sells-group/hitrate-cli/internal/model"
	"github.com/sells-group/hitrate-cli/internal/reconcile"
	"github.com/sells-group/hitrate-cli/internal/scoring"
	"github.com/sells-group/hitrate-cli/internal/store"
)

var asOf = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func testSnapshot() *model.Snapshot {
	return model.NewSnapshot(
		[]model.Equipment{
			{
				ID: "BF!2", Company: "Acme Steel GmbH", Country: "Germany", Region: "Europe",
				InstallYear: intp(1999), Type: model.EquipmentBlastFurnace, Manufacturer: "SMS group",
				Location: &model.Coordinates{Lat: 51.5, Lon: 6.7},
			},
			{
				ID: "EAF!2", Company: "Acme Steel GmbH", Country: "Germany", Region: "Europe",
				InstallYear: intp(2020), Type: model.EquipmentElectricArc, Manufacturer: "Danieli",
			},
			{
				ID: "HSM!2", Company: "Nucor", Country: "USA", Region: "Americas",
				InstallYear: intp(2010), Type: model.EquipmentHotRollingMill,
				Location: &model.Coordinates{Lat: 40.0, Lon: -80.0},
			},
			{
				ID: "Other!2", Company: "Tata Steel", Country: "Netherlands", Region: "Europe",
				Type: model.EquipmentOther, TypeLabel: "Crane",
			},
		},
		[]model.Customer{
			{ID: "c1", Name: "GmbH Acme Steel", Rating: model.RatingC, Country: "Germany"},
			{ID: "c2", Name: "Tata Steel", Rating: model.RatingA, Country: "Netherlands"},
		},
	)
}

type testEnv struct {
	svc   *dashboard.Service
	srv   *httptest.Server
	loads *atomic.Int32
}

func newTestEnv(t *testing.T, load dashboard.LoadFunc, st store.Store) *testEnv {
	t.Helper()
	scorer, err := scoring.New(scoring.DefaultWeights())
	require.NoError(t, err)

	rc := reconcile.DefaultConfig()
	rc.AdjudicationRPS = 0

	env := &testEnv{loads: &atomic.Int32{}}
	if load == nil {
		load = func(context.Context) (*model.Snapshot, *ingest.Report, error) {
			env.loads.Add(1)
			return testSnapshot(), &ingest.Report{
				Equipment: 4,
				Customers: 2,
				Skipped:   1,
				Issues: []ingest.Issue{
					{Source: "ib.xlsx", Sheet: "Mills", Row: 7, Field: ingest.FieldCompany, Reason: ingest.ReasonMissingField},
				},
			}, nil
		}
	}

	svc, err := dashboard.NewService(dashboard.ServiceConfig{
		Load:      load,
		Reconcile: rc,
		Scorer:    scorer,
		Store:     st,
		Clock:     func() time.Time { return asOf },
	})
	require.NoError(t, err)

	env.svc = svc
	env.srv = httptest.NewServer(New(svc, Options{CORSOrigins: []string{"https://dash.example.com"}}).Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) reload(t *testing.T) {
	t.Helper()
	_, err := e.svc.Reload(context.Background())
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var body map[string]any
	resp := getJSON(t, env.srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["loaded"])

	env.reload(t)
	body = nil
	getJSON(t, env.srv.URL+"/health", &body)
	assert.Equal(t, true, body["loaded"])
	assert.NotEmpty(t, body["version"])
}

func TestEndpoints_NotLoaded(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, path := range []string{
		"/api/filters", "/api/equipment", "/api/equipment.geojson", "/api/companies",
		"/api/summary", "/api/mappings", "/api/quality", "/api/ingest",
	} {
		t.Run(path, func(t *testing.T) {
			resp := getJSON(t, env.srv.URL+path, nil)
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		})
	}
}

func TestEquipment(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var rows []dashboard.Row
	resp := getJSON(t, env.srv.URL+"/api/equipment", &rows)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Len(t, rows, 4)
	assert.Equal(t, "BF!2", rows[0].Equipment.ID)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].Score, rows[i].Score)
	}
	require.NotNil(t, rows[0].Customer)
	assert.Equal(t, "c1", rows[0].Customer.ID)
	assert.NotEmpty(t, rows[0].Drivers)
}

func TestEquipment_Filters(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	tests := []struct {
		name  string
		query string
		ids   []string
	}{
		{name: "country", query: "?country=germany", ids: []string{"BF!2", "EAF!2"}},
		{name: "all is no filter", query: "?country=All&region=All", ids: []string{"BF!2", "HSM!2", "Other!2", "EAF!2"}},
		{name: "type label", query: "?type=crane", ids: []string{"Other!2"}},
		{name: "min score", query: "?min_score=90", ids: []string{"BF!2"}},
		{name: "matched only", query: "?matched=true&region=Europe", ids: []string{"BF!2", "Other!2", "EAF!2"}},
		{name: "no match", query: "?company=Unknown", ids: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []dashboard.Row
			resp := getJSON(t, env.srv.URL+"/api/equipment"+tt.query, &rows)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			ids := make([]string, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.Equipment.ID)
			}
			assert.ElementsMatch(t, tt.ids, ids)
		})
	}
}

func TestEquipment_BadQuery(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	for _, q := range []string{"?min_score=high", "?matched=maybe"} {
		resp := getJSON(t, env.srv.URL+"/api/equipment"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestEquipmentGeoJSON(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	resp := getJSON(t, env.srv.URL+"/api/equipment.geojson", &fc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{6.7, 51.5}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "Acme Steel GmbH", fc.Features[0].Properties["company"])
}

func TestSummaryAndCompanies(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var sum dashboard.Summary
	getJSON(t, env.srv.URL+"/api/summary", &sum)
	assert.Equal(t, 4, sum.Count)
	assert.Equal(t, 3, sum.Matched)
	assert.Equal(t, sum.Count, sum.High+sum.Medium+sum.Low)

	var companies []dashboard.Company
	getJSON(t, env.srv.URL+"/api/companies?country=Germany", &companies)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme Steel GmbH", companies[0].Company)
	assert.Equal(t, 2, companies[0].Equipment)
}

func TestFilters(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var opts dashboard.FilterOptions
	getJSON(t, env.srv.URL+"/api/filters", &opts)
	assert.Equal(t, []string{"Germany", "Netherlands", "USA"}, opts.Countries)
	assert.Equal(t, []string{"Americas", "Europe"}, opts.Regions)
	assert.Len(t, opts.Companies, 3)
}

func TestMappingsAndQuality(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var all []reconcile.Match
	getJSON(t, env.srv.URL+"/api/mappings", &all)
	assert.Len(t, all, 3)

	var matched []reconcile.Match
	getJSON(t, env.srv.URL+"/api/mappings?status=MATCHED", &matched)
	assert.Len(t, matched, 2)
	for _, m := range matched {
		assert.Equal(t, reconcile.StatusMatched, m.Status)
		assert.Equal(t, reconcile.TierExcellent, m.Tier)
	}

	var excellent []reconcile.Match
	getJSON(t, env.srv.URL+"/api/mappings?tier=excellent", &excellent)
	assert.Len(t, excellent, 2)

	var q reconcile.QualityReport
	getJSON(t, env.srv.URL+"/api/quality", &q)
	assert.Equal(t, 3, q.Total)
	assert.Equal(t, 2, q.Matched)
	var sum float64
	for _, ts := range q.Tiers {
		sum += ts.Percent
	}
	assert.InDelta(t, 100, sum, 0.01)
}

func TestIngestReport(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	var body struct {
		Report ingest.Report         `json:"report"`
		Counts map[ingest.Reason]int `json:"counts"`
	}
	getJSON(t, env.srv.URL+"/api/ingest", &body)
	assert.Equal(t, 4, body.Report.Equipment)
	assert.Equal(t, 1, body.Report.Skipped)
	assert.Equal(t, 1, body.Counts[ingest.ReasonMissingField])
}

func TestReload(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, err := http.Post(env.srv.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["run_id"])
	assert.NotEmpty(t, body["version"])
	assert.Equal(t, int32(1), env.loads.Load())

	st, err := env.svc.State()
	require.NoError(t, err)
	assert.Equal(t, body["version"], st.Snapshot.Version)
}

func TestReload_FailureKeepsPreviousState(t *testing.T) {
	var fail atomic.Bool
	load := func(context.Context) (*model.Snapshot, *ingest.Report, error) {
		if fail.Load() {
			return nil, nil, errors.New("ftp down")
		}
		return testSnapshot(), &ingest.Report{}, nil
	}
	env := newTestEnv(t, load, nil)
	env.reload(t)
	before, err := env.svc.State()
	require.NoError(t, err)

	fail.Store(true)
	resp, err := http.Post(env.srv.URL+"/api/reload", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	after, err := env.svc.State()
	require.NoError(t, err)
	assert.Equal(t, before.Snapshot.Version, after.Snapshot.Version)
}

func TestReload_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp := getJSON(t, env.srv.URL+"/api/reload", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	st, err := store.NewSQLite(t.TempDir() + "/runs.db")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	env := newTestEnv(t, nil, st)
	env.reload(t)
	env.reload(t)

	var runs []store.Run
	resp := getJSON(t, env.srv.URL+"/api/runs?limit=1", &runs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Names)

	bad := getJSON(t, env.srv.URL+"/api/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestRuns_WithoutStore(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var runs []store.Run
	resp := getJSON(t, env.srv.URL+"/api/runs", &runs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, runs)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/equipment", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://dash.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.reload(t)

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hitrate_reloads_total")
}
