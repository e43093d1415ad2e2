package render

type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

type Legend struct {
	Layer   LayerName     `json:"layer"`
	Title   string        `json:"title"`
	Entries []LegendEntry `json:"entries"`
}

func entries(table []bucket, extra ...bucket) []LegendEntry {
	out := make([]LegendEntry, 0, len(table)+len(extra))
	for _, b := range append(append([]bucket(nil), table...), extra...) {
		out = append(out, LegendEntry{Color: b.color, Label: b.label})
	}
	return out
}

// Legends lists one legend per layer, built from the colour tables.
func Legends() []Legend {
	terrain := append(entries(slopeBuckets), entries(elevationBuckets, elevationBottom)...)
	return []Legend{
		{Layer: LayerNDVI, Title: "NDVI", Entries: entries(ndviBuckets, ndviTop)},
		{Layer: LayerCanopy, Title: "Canopy Height", Entries: entries(canopyBuckets, canopyTop)},
		{Layer: LayerTerrain, Title: "Terrain", Entries: terrain},
		{Layer: LayerWater, Title: "Water Proximity", Entries: entries(waterBuckets, waterTop)},
	}
}
