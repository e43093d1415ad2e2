// Package export writes result sets as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tealeg/xlsx/v3"

	"ee-insight/earthengine"
	"ee-insight/render"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var csvHeader = []string{"layer", "lat", "lng", "value", "value2", "color"}

type row struct {
	lat, lng float64
	value    float64
	value2   *float64
	color    string
}

type section struct {
	layer  render.LayerName
	title  string
	header []string
	rows   []row
}

// sections flattens rs in display order. Absent layers are skipped.
func sections(rs *earthengine.ResultSet) []section {
	if rs == nil {
		return nil
	}
	var out []section
	if rs.NDVI != nil {
		s := section{layer: render.LayerNDVI, title: "NDVI", header: []string{"lat", "lng", "ndvi_mean", "color"}}
		for _, smp := range rs.NDVI {
			s.rows = append(s.rows, row{lat: smp.Lat, lng: smp.Lng, value: smp.NDVIMean, color: render.NDVIColor(smp.NDVIMean)})
		}
		out = append(out, s)
	}
	if rs.CanopyHeight != nil {
		s := section{layer: render.LayerCanopy, title: "Canopy Height", header: []string{"lat", "lng", "canopy_height_mean", "color"}}
		for _, smp := range rs.CanopyHeight {
			s.rows = append(s.rows, row{lat: smp.Lat, lng: smp.Lng, value: smp.CanopyHeightMean, color: render.CanopyColor(smp.CanopyHeightMean)})
		}
		out = append(out, s)
	}
	if rs.Terrain != nil {
		s := section{layer: render.LayerTerrain, title: "Terrain", header: []string{"lat", "lng", "elevation_mean", "slope_mean", "color"}}
		for _, smp := range rs.Terrain {
			slope := smp.SlopeMean
			s.rows = append(s.rows, row{lat: smp.Lat, lng: smp.Lng, value: smp.ElevationMean, value2: &slope,
				color: render.TerrainColor(smp.ElevationMean, smp.SlopeMean)})
		}
		out = append(out, s)
	}
	if rs.Water != nil {
		s := section{layer: render.LayerWater, title: "Water Proximity", header: []string{"lat", "lng", "water_proximity", "color"}}
		for _, smp := range rs.Water {
			s.rows = append(s.rows, row{lat: smp.Lat, lng: smp.Lng, value: smp.WaterProximity, color: render.WaterColor(smp.WaterProximity)})
		}
		out = append(out, s)
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes one line per sample, every layer in the same table.
func WriteCSV(w io.Writer, rs *earthengine.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range sections(rs) {
		for _, r := range s.rows {
			v2 := ""
			if r.value2 != nil {
				v2 = formatFloat(*r.value2)
			}
			rec := []string{string(s.layer), formatFloat(r.lat), formatFloat(r.lng), formatFloat(r.value), v2, r.color}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes one sheet per layer that has samples.
func WriteXLSX(w io.Writer, rs *earthengine.ResultSet) error {
	f := xlsx.NewFile()
	sheets := 0
	for _, s := range sections(rs) {
		if len(s.rows) == 0 {
			continue
		}
		sh, err := f.AddSheet(s.title)
		if err != nil {
			return fmt.Errorf("add sheet %s: %w", s.title, err)
		}
		hr := sh.AddRow()
		for _, h := range s.header {
			hr.AddCell().SetString(h)
		}
		for _, r := range s.rows {
			xr := sh.AddRow()
			xr.AddCell().SetFloat(r.lat)
			xr.AddCell().SetFloat(r.lng)
			xr.AddCell().SetFloat(r.value)
			if r.value2 != nil {
				xr.AddCell().SetFloat(*r.value2)
			}
			xr.AddCell().SetString(r.color)
		}
		sheets++
	}
	if sheets == 0 {
		// a workbook needs at least one sheet
		sh, err := f.AddSheet("Results")
		if err != nil {
			return fmt.Errorf("add sheet: %w", err)
		}
		sh.AddRow().AddCell().SetString("No results")
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
