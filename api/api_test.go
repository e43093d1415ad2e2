package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ee-insight/auth"
	"ee-insight/earthengine"
	"ee-insight/logging"
	"ee-insight/metrics"
	"ee-insight/render"
	"ee-insight/tracker"
	"ee-insight/view"
)

const testSecret = "0123456789abcdef"

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

type fixture struct {
	mux         *http.ServeMux
	board       *view.Board
	layers      *render.LayerSet
	session     *tracker.Session
	down        atomic.Bool
	regionCalls atomic.Int32
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/earth-engine/status":
			if f.down.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"error","message":"credentials expired"}`))
				return
			}
			w.Write([]byte(`{"status":"connected"}`))
		case "/earth-engine/datasets":
			w.Write([]byte(`{"datasets":[]}`))
		case "/earth-engine/process-region":
			f.regionCalls.Add(1)
			w.Write([]byte(`{"task_id":7,"status":"queued"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	reg := prometheus.NewRegistry()
	mc, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	f.board = view.NewBoard(10 * time.Second)
	f.layers = render.NewLayerSet(mc)
	f.session = tracker.NewSession(earthengine.NewClient(backend.URL), tracker.Options{
		Observer:  f.board,
		Layers:    f.layers,
		Metrics:   mc,
		NewTicker: func(time.Duration) tracker.Ticker { return idleTicker{ch: make(chan time.Time)} },
	})
	t.Cleanup(f.session.Stop)

	f.mux = http.NewServeMux()
	RegisterHandlers(f.mux, &Deps{
		Secret:       secret,
		MaxCells:     50,
		Session:      f.session,
		Board:        f.board,
		Layers:       f.layers,
		Metrics:      mc,
		AccessLogger: logging.Discard(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func token(t *testing.T, operator bool) string {
	t.Helper()
	tok, err := auth.GenerateJWT(testSecret, "tester", operator, 10)
	require.NoError(t, err)
	return tok
}

const regionBody = `{"bounding_box":{"min_lon":-60,"min_lat":-5,"max_lon":-59,"max_lat":-4}}`

func TestAPIRequiresToken(t *testing.T) {
	f := newFixture(t, testSecret)

	rr := f.do(t, http.MethodGet, "/api/task", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/task", "", token(t, false))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestProcessRegionNeedsOperator(t *testing.T) {
	f := newFixture(t, testSecret)
	rr := f.do(t, http.MethodPost, "/api/earth-engine/process-region", regionBody, token(t, false))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, f.regionCalls.Load())
}

func TestProcessRegionStartsTracking(t *testing.T) {
	f := newFixture(t, testSecret)
	rr := f.do(t, http.MethodPost, "/api/earth-engine/process-region", regionBody, token(t, true))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		TaskID earthengine.TaskID `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, earthengine.TaskID(7), out.TaskID)

	id, ok := f.session.Active()
	require.True(t, ok)
	require.Equal(t, earthengine.TaskID(7), id)

	snap := f.board.Snapshot()
	require.NotNil(t, snap.Status)
	require.Equal(t, "Processing started", snap.Status.Message)
}

func TestProcessRegionConnectionDown(t *testing.T) {
	f := newFixture(t, "")
	f.down.Store(true)

	rr := f.do(t, http.MethodPost, "/api/earth-engine/process-region", regionBody, "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Zero(t, f.regionCalls.Load())

	snap := f.board.Snapshot()
	require.NotNil(t, snap.Banner)
	require.Equal(t, "Earth Engine connection failed: credentials expired", snap.Banner.Message)
}

func TestProcessRegionRejectsBadInput(t *testing.T) {
	f := newFixture(t, "")
	rr := f.do(t, http.MethodPost, "/api/earth-engine/process-region",
		`{"bounding_box":{"min_lon":-60,"min_lat":-5,"max_lon":-59,"max_lat":-4},"max_cells":501}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/earth-engine/process-region",
		`{"bounding_box":{"min_lon":-59,"min_lat":-5,"max_lon":-60,"max_lat":-4}}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/earth-engine/process-region", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDatasetsEmptyWarns(t *testing.T) {
	f := newFixture(t, "")
	rr := f.do(t, http.MethodGet, "/api/earth-engine/datasets", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"datasets":[],"warning":"No datasets available"}`, rr.Body.String())
}

func TestLayersAndLegends(t *testing.T) {
	f := newFixture(t, "")
	f.layers.Render(&earthengine.ResultSet{NDVI: []earthengine.NDVISample{{Lat: -4.5, Lng: -59.5, NDVIMean: 0.7}}})

	rr := f.do(t, http.MethodGet, "/api/layers?name=ndvi", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	require.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)

	rr = f.do(t, http.MethodGet, "/api/layers?name=lidar", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/legends", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Very dense vegetation")
}

func TestExportLastResults(t *testing.T) {
	f := newFixture(t, "")
	rr := f.do(t, http.MethodGet, "/api/export", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	f.board.TaskResults(7, &earthengine.ResultSet{
		Water: []earthengine.WaterSample{{Lat: 1, Lng: 2, WaterProximity: 120}},
	})
	rr = f.do(t, http.MethodGet, "/api/export?type=csv", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Disposition"), "ee_task_7.csv")

	recs, err := csv.NewReader(rr.Body).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"water", "1", "2", "120", "", "#4444ff"}, recs[1])

	rr = f.do(t, http.MethodGet, "/api/export?task_id=7", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/export?type=pdf", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDismissClearsStatus(t *testing.T) {
	f := newFixture(t, "")
	f.board.TaskStatus(tracker.StatusUpdate{TaskID: 3, Status: "running", Message: "Processing in progress: 40%"})

	rr := f.do(t, http.MethodPost, "/api/task/dismiss", "", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Nil(t, f.board.Snapshot().Status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodGet, "/api/legends", "", "")

	rr := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `ee_http_requests_total{code="200",path="/api/legends"} 1`)
}
