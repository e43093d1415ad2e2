package render

// bucket is one row of a threshold table: values below upper get color.
type bucket struct {
	upper float64
	color string
	label string
}

// Ordered low to high, first match wins. The last row catches everything else.
var (
	ndviBuckets = []bucket{
		{0, "#ffffff", "Non-vegetation (< 0)"},
		{0.2, "#eeeeee", "Sparse vegetation (0 - 0.2)"},
		{0.4, "#ccffcc", "Light vegetation (0.2 - 0.4)"},
		{0.6, "#77cc77", "Moderate vegetation (0.4 - 0.6)"},
		{0.8, "#33aa33", "Dense vegetation (0.6 - 0.8)"},
	}
	ndviTop = bucket{color: "#006600", label: "Very dense vegetation (>= 0.8)"}

	canopyBuckets = []bucket{
		{5, "#ffffff", "Very short or no canopy (< 5 m)"},
		{10, "#ccffcc", "Short canopy (5 - 10 m)"},
		{20, "#77cc77", "Medium canopy (10 - 20 m)"},
		{30, "#33aa33", "Tall canopy (20 - 30 m)"},
	}
	canopyTop = bucket{color: "#006600", label: "Very tall canopy (>= 30 m)"}

	waterBuckets = []bucket{
		{50, "#0000ff", "Very close to water (< 50 m)"},
		{200, "#4444ff", "Close to water (50 - 200 m)"},
		{500, "#8888ff", "Somewhat close (200 - 500 m)"},
		{1000, "#ccccff", "Moderate distance (500 - 1000 m)"},
	}
	waterTop = bucket{color: "#f0f0ff", label: "Far from water (>= 1000 m)"}
)

// Terrain tables use strict lower bounds, walked high to low.
var (
	slopeBuckets = []bucket{
		{30, "#aa3333", "Very steep (> 30°)"},
		{20, "#cc7777", "Steep (20 - 30°)"},
		{10, "#ddaaaa", "Moderate slope (10 - 20°)"},
	}
	elevationBuckets = []bucket{
		{1000, "#ccccff", "High elevation (> 1000 m)"},
		{500, "#aaaadd", "Medium-high elevation (500 - 1000 m)"},
		{200, "#8888bb", "Medium elevation (200 - 500 m)"},
		{100, "#666699", "Low-medium elevation (100 - 200 m)"},
	}
	elevationBottom = bucket{color: "#444477", label: "Low elevation (<= 100 m)"}
)

func below(v float64, table []bucket, top bucket) string {
	for _, b := range table {
		if v < b.upper {
			return b.color
		}
	}
	return top.color
}

func NDVIColor(ndvi float64) string {
	return below(ndvi, ndviBuckets, ndviTop)
}

func CanopyColor(heightM float64) string {
	return below(heightM, canopyBuckets, canopyTop)
}

func WaterColor(proximityM float64) string {
	return below(proximityM, waterBuckets, waterTop)
}

// TerrainColor gives steep slopes priority over elevation.
func TerrainColor(elevationM, slopeDeg float64) string {
	for _, b := range slopeBuckets {
		if slopeDeg > b.upper {
			return b.color
		}
	}
	for _, b := range elevationBuckets {
		if elevationM > b.upper {
			return b.color
		}
	}
	return elevationBottom.color
}
