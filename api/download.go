package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ee-insight/earthengine"
	"ee-insight/export"
	"ee-insight/store"
)

// ExportHandler downloads the last results, or a stored task's results when
// task_id is given. type=csv (default) or xlsx.
func ExportHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		claims, ok := authorize(w, r, d, false)
		if !ok {
			return
		}

		var (
			id earthengine.TaskID
			rs *earthengine.ResultSet
		)
		if s := r.URL.Query().Get("task_id"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, "Invalid task_id", http.StatusBadRequest)
				return
			}
			if d.Store == nil {
				http.Error(w, "Task history disabled", http.StatusNotFound)
				return
			}
			id = earthengine.TaskID(n)
			rs, err = d.Store.LoadResults(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "No results for this task", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "Failed to load results", http.StatusInternalServerError)
				d.AccessLogger.Write("[EXPORT_FAIL] " + err.Error())
				return
			}
		} else {
			id, rs = d.Board.Results()
		}
		if rs == nil {
			http.Error(w, "No results to export", http.StatusNotFound)
			return
		}

		fileType := strings.ToLower(r.URL.Query().Get("type"))
		var (
			buf         bytes.Buffer
			err         error
			contentType string
			fileName    string
		)
		switch fileType {
		case "excel", "xlsx":
			fileType = "xlsx"
			err = export.WriteXLSX(&buf, rs)
			contentType = export.ContentTypeXLSX
		case "", "csv":
			fileType = "csv"
			err = export.WriteCSV(&buf, rs)
			contentType = export.ContentTypeCSV
		default:
			http.Error(w, "Unknown export type", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "Export failed", http.StatusInternalServerError)
			d.AccessLogger.Write("[EXPORT_FAIL] " + err.Error())
			return
		}
		fileName = fmt.Sprintf("ee_task_%d.%s", id, fileType)

		d.AccessLogger.Writef("[DOWNLOAD] user=%s task=%d type=%s", claims.Subject, id, fileType)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
		w.Write(buf.Bytes())
	}
}
