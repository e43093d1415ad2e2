package render

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ee-insight/earthengine"
)

type gaugeRecorder map[string]int

func (g gaugeRecorder) SetMarkers(layer string, n int) { g[layer] = n }

func sampleResults() *earthengine.ResultSet {
	return &earthengine.ResultSet{
		NDVI: []earthengine.NDVISample{
			{Lat: -4.5, Lng: -59.5, NDVIMean: 0.2},
			{Lat: -4.6, Lng: -59.4, NDVIMean: 0.85},
		},
		CanopyHeight: []earthengine.CanopySample{{Lat: -4.5, Lng: -59.5, CanopyHeightMean: 24.25}},
		Terrain:      []earthengine.TerrainSample{{Lat: -4.5, Lng: -59.5, ElevationMean: 50, SlopeMean: 35}},
		Water:        []earthengine.WaterSample{{Lat: -4.5, Lng: -59.5, WaterProximity: 120}},
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	ls := NewLayerSet(nil)
	rs := sampleResults()

	first := ls.Render(rs)
	before := ls.Layer(LayerNDVI).Markers()
	second := ls.Render(rs)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("counts differ between renders (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, ls.Layer(LayerNDVI).Markers()); diff != "" {
		t.Errorf("markers differ after replay (-before +after):\n%s", diff)
	}
	if n := ls.Layer(LayerNDVI).Len(); n != 2 {
		t.Errorf("Expected 2 NDVI markers, got %d", n)
	}
}

func TestRenderMarkerStyle(t *testing.T) {
	ls := NewLayerSet(nil)
	ls.Render(sampleResults())

	want := Marker{
		Lat: -4.5, Lng: -59.5,
		Color: "#ccffcc", FillColor: "#ccffcc",
		FillOpacity: 0.6, Radius: 350, Weight: 1,
		Tooltip: "NDVI: 0.20",
	}
	if diff := cmp.Diff(want, ls.Layer(LayerNDVI).Markers()[0]); diff != "" {
		t.Errorf("unexpected marker (-want +got):\n%s", diff)
	}
	if got := ls.Layer(LayerCanopy).Markers()[0].Tooltip; got != "Canopy Height: 24.2 m" && got != "Canopy Height: 24.3 m" {
		t.Errorf("unexpected canopy tooltip %q", got)
	}
	terrain := ls.Layer(LayerTerrain).Markers()[0]
	if terrain.Color != "#aa3333" || terrain.Tooltip != "Elevation: 50.0 m, Slope: 35.0°" {
		t.Errorf("unexpected terrain marker %+v", terrain)
	}
	if got := ls.Layer(LayerWater).Markers()[0].Tooltip; got != "Water Proximity: 120.0 m" {
		t.Errorf("unexpected water tooltip %q", got)
	}
}

func TestRenderLeavesAbsentLayers(t *testing.T) {
	gauge := gaugeRecorder{}
	ls := NewLayerSet(gauge)
	ls.Render(sampleResults())

	counts := ls.Render(&earthengine.ResultSet{Water: []earthengine.WaterSample{}})

	if _, ok := counts[LayerNDVI]; ok {
		t.Error("NDVI layer should not be re-rendered")
	}
	if n := ls.Layer(LayerNDVI).Len(); n != 2 {
		t.Errorf("absent NDVI layer should keep 2 markers, got %d", n)
	}
	if n := ls.Layer(LayerWater).Len(); n != 0 {
		t.Errorf("empty water layer should be cleared, got %d", n)
	}
	if gauge["water"] != 0 || gauge["ndvi"] != 2 {
		t.Errorf("unexpected gauge values %v", gauge)
	}
}

func TestRenderNil(t *testing.T) {
	ls := NewLayerSet(nil)
	if counts := ls.Render(nil); len(counts) != 0 {
		t.Errorf("Expected no counts, got %v", counts)
	}
}

func TestFeatureCollection(t *testing.T) {
	ls := NewLayerSet(nil)
	ls.Render(sampleResults())

	fc := ls.Layer(LayerNDVI).FeatureCollection()
	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(fc.Features))
	}
	b, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "FeatureCollection" {
		t.Errorf("unexpected type %q", decoded.Type)
	}
	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 || coords[0] != -59.5 || coords[1] != -4.5 {
		t.Errorf("Expected [lng, lat], got %v", coords)
	}
	if decoded.Features[0].Properties["color"] != "#ccffcc" {
		t.Errorf("unexpected properties %v", decoded.Features[0].Properties)
	}
}

func TestLegends(t *testing.T) {
	legends := Legends()
	if len(legends) != 4 {
		t.Fatalf("Expected 4 legends, got %d", len(legends))
	}
	sizes := map[LayerName]int{}
	for _, l := range legends {
		sizes[l.Layer] = len(l.Entries)
	}
	want := map[LayerName]int{LayerNDVI: 6, LayerCanopy: 5, LayerTerrain: 8, LayerWater: 5}
	if diff := cmp.Diff(want, sizes); diff != "" {
		t.Errorf("legend sizes (-want +got):\n%s", diff)
	}
	if legends[0].Entries[2].Color != NDVIColor(0.3) {
		t.Errorf("legend colour does not match NDVIColor")
	}
}

func TestParseLayerName(t *testing.T) {
	if n, err := ParseLayerName("terrain"); err != nil || n != LayerTerrain {
		t.Errorf("ParseLayerName(terrain) = %v, %v", n, err)
	}
	if _, err := ParseLayerName("phi0"); err == nil {
		t.Error("Expected error for unknown layer")
	}
}
