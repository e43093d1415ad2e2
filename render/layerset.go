package render

import (
	"ee-insight/earthengine"
)

// MarkerGauge receives the marker count of a layer after each render.
type MarkerGauge interface {
	SetMarkers(layer string, n int)
}

// LayerSet holds the four metric layers.
type LayerSet struct {
	layers map[LayerName]*Layer
	gauge  MarkerGauge
}

func NewLayerSet(gauge MarkerGauge) *LayerSet {
	ls := &LayerSet{layers: make(map[LayerName]*Layer, len(LayerNames)), gauge: gauge}
	for _, n := range LayerNames {
		ls.layers[n] = NewLayer(n)
	}
	return ls
}

func (ls *LayerSet) Layer(name LayerName) *Layer {
	return ls.layers[name]
}

// Render replaces every layer present in rs. Layers absent from rs keep
// their markers. It returns the new marker count per rendered layer.
func (ls *LayerSet) Render(rs *earthengine.ResultSet) map[LayerName]int {
	counts := map[LayerName]int{}
	if rs == nil {
		return counts
	}
	if rs.NDVI != nil {
		ls.replace(LayerNDVI, NDVIMarkers(rs.NDVI), counts)
	}
	if rs.CanopyHeight != nil {
		ls.replace(LayerCanopy, CanopyMarkers(rs.CanopyHeight), counts)
	}
	if rs.Terrain != nil {
		ls.replace(LayerTerrain, TerrainMarkers(rs.Terrain), counts)
	}
	if rs.Water != nil {
		ls.replace(LayerWater, WaterMarkers(rs.Water), counts)
	}
	return counts
}

func (ls *LayerSet) replace(name LayerName, markers []Marker, counts map[LayerName]int) {
	ls.layers[name].Replace(markers)
	counts[name] = len(markers)
	if ls.gauge != nil {
		ls.gauge.SetMarkers(string(name), len(markers))
	}
}

// Counts reports the current size of every layer.
func (ls *LayerSet) Counts() map[LayerName]int {
	out := make(map[LayerName]int, len(ls.layers))
	for n, l := range ls.layers {
		out[n] = l.Len()
	}
	return out
}
