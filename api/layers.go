package api

import (
	"encoding/json"
	"net/http"

	"ee-insight/render"
)

// LayerHandler returns the markers of one layer as a GeoJSON FeatureCollection.
func LayerHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		name, err := render.ParseLayerName(r.URL.Query().Get("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fc := d.Layers.Layer(name).FeatureCollection()
		w.Header().Set("Content-Type", "application/geo+json")
		json.NewEncoder(w).Encode(fc)
	}
}

func LegendsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if _, ok := authorize(w, r, d, false); !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"legends": render.Legends(),
			"markers": d.Layers.Counts(),
		})
	}
}
