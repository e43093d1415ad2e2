package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ee-insight/config"
	"ee-insight/earthengine"
	"ee-insight/tracker"
)

func StatusHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		writeJSON(w, http.StatusOK, d.Session.CheckStatus(r.Context()))
	}
}

func DatasetsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		ds := d.Session.Datasets(r.Context())
		out := map[string]interface{}{"datasets": ds}
		if len(ds) == 0 {
			out["warning"] = "No datasets available"
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type processRegionBody struct {
	BoundingBox earthengine.BoundingBox `json:"bounding_box"`
	MaxCells    int                     `json:"max_cells"`
}

func ProcessRegionHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		claims, ok := authorize(w, r, d, true)
		if !ok {
			return
		}
		var body processRegionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Bad JSON", http.StatusBadRequest)
			d.AccessLogger.Write("[REGION_FAIL] user=" + claims.Subject + " bad_json")
			return
		}
		if body.MaxCells == 0 {
			body.MaxCells = d.MaxCells
		}
		if body.MaxCells < 0 || body.MaxCells > config.MaxCellsLimit {
			http.Error(w, fmt.Sprintf("max_cells must be between 1 and %d", config.MaxCellsLimit), http.StatusBadRequest)
			return
		}
		if err := body.BoundingBox.Validate(); err != nil {
			http.Error(w, "Invalid bounding box: "+err.Error(), http.StatusBadRequest)
			return
		}

		if st, ok := d.Session.EnsureConnected(r.Context()); !ok {
			writeJSON(w, http.StatusServiceUnavailable, st)
			d.AccessLogger.Write("[REGION_FAIL] user=" + claims.Subject + " status=" + st.Status)
			return
		}
		h, err := d.Session.SubmitRegion(r.Context(), body.BoundingBox, body.MaxCells)
		if err != nil {
			http.Error(w, "Failed to start Earth Engine processing task", http.StatusBadGateway)
			d.AccessLogger.Write("[REGION_FAIL] user=" + claims.Subject + " err=" + err.Error())
			return
		}
		d.AccessLogger.Writef("[REGION_OK] user=%s task=%d bbox=%q", claims.Subject, h.TaskID, body.BoundingBox.String())
		writeJSON(w, http.StatusOK, map[string]interface{}{"task_id": h.TaskID, "session_id": d.Session.ID()})
	}
}

func ProcessCellsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		claims, ok := authorize(w, r, d, true)
		if !ok {
			return
		}
		var body struct {
			CellIDs []string `json:"cell_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Bad JSON", http.StatusBadRequest)
			return
		}
		if len(body.CellIDs) == 0 {
			http.Error(w, "cell_ids missing", http.StatusBadRequest)
			return
		}
		h, err := d.Session.SubmitCells(r.Context(), body.CellIDs)
		if err != nil {
			http.Error(w, "Failed to start Earth Engine cell processing task", http.StatusBadGateway)
			d.AccessLogger.Write("[CELLS_FAIL] user=" + claims.Subject + " err=" + err.Error())
			return
		}
		d.AccessLogger.Writef("[CELLS_OK] user=%s task=%d cells=%d", claims.Subject, h.TaskID, len(body.CellIDs))
		writeJSON(w, http.StatusOK, map[string]interface{}{"task_id": h.TaskID, "session_id": d.Session.ID()})
	}
}

func ProcessCellHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		claims, ok := authorize(w, r, d, true)
		if !ok {
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id", http.StatusBadRequest)
			return
		}
		res, err := d.Session.ProcessCell(r.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, earthengine.ConnectionStatus{
				Status:  tracker.StatusError,
				Message: "Failed to process cell with Earth Engine: " + err.Error(),
			})
			return
		}
		d.AccessLogger.Write("[CELL_OK] user=" + claims.Subject + " cell=" + id)
		writeJSON(w, http.StatusOK, res)
	}
}
