package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the layer's markers as GeoJSON points carrying
// their style in the properties.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range l.Markers() {
		f := geojson.NewFeature(orb.Point{m.Lng, m.Lat})
		f.Properties["layer"] = string(l.name)
		f.Properties["color"] = m.Color
		f.Properties["fillColor"] = m.FillColor
		f.Properties["fillOpacity"] = m.FillOpacity
		f.Properties["radius"] = m.Radius
		f.Properties["weight"] = m.Weight
		f.Properties["tooltip"] = m.Tooltip
		fc.Append(f)
	}
	return fc
}
