package render

import (
	"fmt"
	"sync"

	"ee-insight/earthengine"
)

type LayerName string

const (
	LayerNDVI    LayerName = "ndvi"
	LayerCanopy  LayerName = "canopy"
	LayerTerrain LayerName = "terrain"
	LayerWater   LayerName = "water"
)

// LayerNames in display order.
var LayerNames = []LayerName{LayerNDVI, LayerCanopy, LayerTerrain, LayerWater}

func ParseLayerName(s string) (LayerName, error) {
	for _, n := range LayerNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown layer %q", s)
}

const (
	markerRadius      = 350 // metres
	markerFillOpacity = 0.6
	markerWeight      = 1
)

// Marker is one circle drawn at a sample's coordinate.
type Marker struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
	Radius      float64 `json:"radius"`
	Weight      int     `json:"weight"`
	Tooltip     string  `json:"tooltip"`
}

func newMarker(lat, lng float64, color, tooltip string) Marker {
	return Marker{
		Lat:         lat,
		Lng:         lng,
		Color:       color,
		FillColor:   color,
		FillOpacity: markerFillOpacity,
		Radius:      markerRadius,
		Weight:      markerWeight,
		Tooltip:     tooltip,
	}
}

// Layer is a named set of markers that is only ever replaced as a whole.
type Layer struct {
	name    LayerName
	mu      sync.RWMutex
	markers []Marker
}

func NewLayer(name LayerName) *Layer {
	return &Layer{name: name}
}

func (l *Layer) Name() LayerName { return l.name }

// Replace clears the layer and installs markers.
func (l *Layer) Replace(markers []Marker) {
	l.mu.Lock()
	l.markers = markers
	l.mu.Unlock()
}

func (l *Layer) Clear() { l.Replace(nil) }

func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.markers)
}

// Markers returns a copy of the current markers.
func (l *Layer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Marker(nil), l.markers...)
}

func NDVIMarkers(samples []earthengine.NDVISample) []Marker {
	out := make([]Marker, 0, len(samples))
	for _, s := range samples {
		out = append(out, newMarker(s.Lat, s.Lng, NDVIColor(s.NDVIMean), fmt.Sprintf("NDVI: %.2f", s.NDVIMean)))
	}
	return out
}

func CanopyMarkers(samples []earthengine.CanopySample) []Marker {
	out := make([]Marker, 0, len(samples))
	for _, s := range samples {
		out = append(out, newMarker(s.Lat, s.Lng, CanopyColor(s.CanopyHeightMean),
			fmt.Sprintf("Canopy Height: %.1f m", s.CanopyHeightMean)))
	}
	return out
}

func TerrainMarkers(samples []earthengine.TerrainSample) []Marker {
	out := make([]Marker, 0, len(samples))
	for _, s := range samples {
		out = append(out, newMarker(s.Lat, s.Lng, TerrainColor(s.ElevationMean, s.SlopeMean),
			fmt.Sprintf("Elevation: %.1f m, Slope: %.1f°", s.ElevationMean, s.SlopeMean)))
	}
	return out
}

func WaterMarkers(samples []earthengine.WaterSample) []Marker {
	out := make([]Marker, 0, len(samples))
	for _, s := range samples {
		out = append(out, newMarker(s.Lat, s.Lng, WaterColor(s.WaterProximity),
			fmt.Sprintf("Water Proximity: %.1f m", s.WaterProximity)))
	}
	return out
}
