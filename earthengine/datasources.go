package earthengine

// DefaultDataSources is sent with every processing request: optical imagery,
// canopy-height lidar, elevation model and surface-water occurrence.
var DefaultDataSources = []string{
	"COPERNICUS/S2_SR",
	"LARSE/GEDI/GEDI04_A_002",
	"USGS/SRTMGL1_003",
	"JRC/GSW1_3/GlobalSurfaceWater",
}

// DataSources returns configured when non-empty, else a copy of the defaults.
func DataSources(configured []string) []string {
	if len(configured) > 0 {
		return append([]string(nil), configured...)
	}
	return append([]string(nil), DefaultDataSources...)
}
