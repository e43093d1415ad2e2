package api

import (
	"context"
	"encoding/json"
	"net/http"

	"ee-insight/auth"
	"ee-insight/earthengine"
	"ee-insight/logging"
	"ee-insight/metrics"
	"ee-insight/render"
	"ee-insight/store"
	"ee-insight/tracker"
	"ee-insight/view"
)

// TaskStore is the part of the store the API reads from.
type TaskStore interface {
	LoadResults(ctx context.Context, id earthengine.TaskID) (*earthengine.ResultSet, error)
	ListTasks(ctx context.Context, limit int) ([]store.TaskRecord, error)
}

// Deps are shared by every handler. Store and Metrics may be nil.
type Deps struct {
	Secret       string // empty disables JWT checks
	MaxCells     int
	Session      *tracker.Session
	Board        *view.Board
	Layers       *render.LayerSet
	Store        TaskStore
	Metrics      *metrics.Collector
	AccessLogger *logging.Logger
}

func RegisterHandlers(mux *http.ServeMux, d *Deps) {
	handle := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, d.Metrics.Instrument(path, h))
	}
	handle("/api/earth-engine/status", StatusHandler(d))
	handle("/api/earth-engine/datasets", DatasetsHandler(d))
	handle("/api/earth-engine/process-region", ProcessRegionHandler(d))
	handle("/api/earth-engine/process-cells", ProcessCellsHandler(d))
	handle("/api/earth-engine/process-cell", ProcessCellHandler(d))
	handle("/api/task", TaskHandler(d))
	handle("/api/task/dismiss", DismissHandler(d))
	handle("/api/tasks", TasksHandler(d))
	handle("/api/layers", LayerHandler(d))
	handle("/api/legends", LegendsHandler(d))
	handle("/api/export", ExportHandler(d))
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}
}

func StartServer(listenAddr string, h http.Handler) error {
	return http.ListenAndServe(listenAddr, h)
}

// authorize checks the bearer token and, for write endpoints, the operator
// claim. It writes the error response itself.
func authorize(w http.ResponseWriter, r *http.Request, d *Deps, operator bool) (auth.Claims, bool) {
	if d.Secret == "" {
		return auth.Claims{Subject: "anonymous", Operator: true}, true
	}
	claims, err := auth.ExtractClaimsFromJWT(r, d.Secret)
	if err != nil {
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
		d.AccessLogger.Write("[DENIED] " + r.URL.Path + " " + err.Error())
		return claims, false
	}
	if operator && !claims.Operator {
		http.Error(w, "Forbidden", http.StatusForbidden)
		d.AccessLogger.Write("[FORBIDDEN] user=" + claims.Subject + " " + r.URL.Path)
		return claims, false
	}
	return claims, true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
