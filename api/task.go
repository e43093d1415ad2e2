package api

import (
	"net/http"
	"strconv"
)

// TaskHandler returns the status widget and banner of the session.
func TaskHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		snap := d.Board.Snapshot()
		out := map[string]interface{}{"session_id": snap.SessionID}
		if snap.Status != nil {
			out["status"] = snap.Status
		}
		if snap.Banner != nil {
			out["banner"] = snap.Banner
		}
		if id, ok := d.Session.Active(); ok {
			out["active_task_id"] = id
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func DismissHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		d.Board.Dismiss()
		w.WriteHeader(http.StatusNoContent)
	}
}

// TasksHandler lists stored tasks, newest first.
func TasksHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		if d.Store == nil {
			http.Error(w, "Task history disabled", http.StatusNotFound)
			return
		}
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		tasks, err := d.Store.ListTasks(r.Context(), limit)
		if err != nil {
			http.Error(w, "Failed to list tasks", http.StatusInternalServerError)
			d.AccessLogger.Write("[TASKS_FAIL] " + err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
	}
}
