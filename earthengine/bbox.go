package earthengine

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBoundingBox parses "minLon,minLat,maxLon,maxLat".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}
	var vals [4]float64
	names := [4]string{"min_lon", "min_lat", "max_lon", "max_lat"}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		vals[i] = v
	}
	b := BoundingBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

func (b BoundingBox) Validate() error {
	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitude out of range [-90, 90]")
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("longitude out of range [-180, 180]")
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("min_lat must be <= max_lat and min_lon must be <= max_lon")
	}
	return nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("North: %.6f, South: %.6f, East: %.6f, West: %.6f", b.MaxLat, b.MinLat, b.MaxLon, b.MinLon)
}
