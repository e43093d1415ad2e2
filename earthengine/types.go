package earthengine

import (
	"encoding/json"
	"fmt"
)

// TaskID is the integer id the backend assigns to a processing task.
type TaskID int64

// Task statuses reported by the backend.
const (
	StatusPending   = "pending"
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

type ProcessRegionRequest struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	DataSources []string    `json:"data_sources"`
	MaxCells    int         `json:"max_cells"`
}

type ProcessCellsRequest struct {
	CellIDs     []string `json:"cell_ids"`
	DataSources []string `json:"data_sources"`
}

// TaskInfo is the answer to a processing request.
type TaskInfo struct {
	TaskID   TaskID   `json:"task_id"`
	Status   string   `json:"status,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
}

// TaskResponse is the body of GET /earth-engine/task/{id}. Progress is a
// fraction in [0,1] when present. Results stay raw so that a malformed
// payload cannot hide the task status.
type TaskResponse struct {
	TaskID   TaskID          `json:"task_id,omitempty"`
	Status   string          `json:"status"`
	Progress *float64        `json:"progress,omitempty"`
	Error    string          `json:"error,omitempty"`
	Results  json.RawMessage `json:"results,omitempty"`
}

// DecodeResults parses the results payload. No payload gives nil, nil.
func (r TaskResponse) DecodeResults() (*ResultSet, error) {
	if len(r.Results) == 0 || string(r.Results) == "null" {
		return nil, nil
	}
	var rs ResultSet
	if err := json.Unmarshal(r.Results, &rs); err != nil {
		return nil, fmt.Errorf("decode task %d results: %w", r.TaskID, err)
	}
	return &rs, nil
}

type ConnectionStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK is false for "error" and "failed".
func (s ConnectionStatus) OK() bool {
	return s.Status != "error" && s.Status != "failed"
}

type Dataset struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description" yaml:"description"`
	Resolution       string `json:"resolution" yaml:"resolution"`
	TemporalCoverage string `json:"temporal_coverage" yaml:"temporal_coverage"`
	UsedFor          string `json:"used_for,omitempty" yaml:"used_for,omitempty"`
}

type datasetsResponse struct {
	Datasets []Dataset `json:"datasets"`
}

// CellResult is the loosely typed object returned for a single cell.
type CellResult map[string]interface{}

// ResultSet holds the samples of a completed task. A nil slice means the
// backend did not return that layer.
type ResultSet struct {
	NDVI         []NDVISample    `json:"ndvi,omitempty"`
	CanopyHeight []CanopySample  `json:"canopy_height,omitempty"`
	Terrain      []TerrainSample `json:"terrain,omitempty"`
	Water        []WaterSample   `json:"water,omitempty"`
}

// Len is the total number of samples over all layers.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.NDVI) + len(rs.CanopyHeight) + len(rs.Terrain) + len(rs.Water)
}

type NDVISample struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	NDVIMean float64 `json:"ndvi_mean"`
}

type CanopySample struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	CanopyHeightMean float64 `json:"canopy_height_mean"`
}

type TerrainSample struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	ElevationMean float64 `json:"elevation_mean"`
	SlopeMean     float64 `json:"slope_mean"`
}

type WaterSample struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	WaterProximity float64 `json:"water_proximity"`
}
