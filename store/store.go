// Package store keeps submitted tasks, their last polled state and the
// samples of completed tasks in SQL (sqlite, postgres or mysql).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"ee-insight/earthengine"
)

var ErrNotFound = errors.New("task not found")

var drivers = map[string]string{
	"sqlite":   "sqlite3",
	"postgres": "postgres",
	"mysql":    "mysql", // DSN needs parseTime=true
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ee_tasks (
		id BIGINT PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		progress DOUBLE PRECISION,
		error_message TEXT,
		params TEXT,
		layers VARCHAR(128),
		submitted_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ee_samples (
		task_id BIGINT NOT NULL,
		layer VARCHAR(32) NOT NULL,
		seq INTEGER NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		metric_value DOUBLE PRECISION NOT NULL,
		metric_value2 DOUBLE PRECISION,
		PRIMARY KEY (task_id, layer, seq)
	)`,
}

// Layer keys as they appear in backend results.
const (
	layerNDVI    = "ndvi"
	layerCanopy  = "canopy_height"
	layerTerrain = "terrain"
	layerWater   = "water"
)

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

type TaskRecord struct {
	ID          earthengine.TaskID `db:"id" json:"task_id"`
	Kind        string             `db:"kind" json:"kind"`
	Status      string             `db:"status" json:"status"`
	Progress    *float64           `db:"progress" json:"progress,omitempty"`
	Error       string             `db:"error_message" json:"error,omitempty"`
	SubmittedAt time.Time          `db:"submitted_at" json:"submitted_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

type sampleRow struct {
	Layer  string   `db:"layer"`
	Seq    int      `db:"seq"`
	Lat    float64  `db:"lat"`
	Lng    float64  `db:"lng"`
	Value  float64  `db:"metric_value"`
	Value2 *float64 `db:"metric_value2"`
}

// Open connects to backend ("sqlite", "postgres", "mysql") and creates the
// tables when missing.
func Open(backend, dsn string) (*Store, error) {
	driver, ok := drivers[backend]
	if !ok {
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	if backend == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", backend, err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordSubmission stores a freshly submitted task with its request.
func (s *Store) RecordSubmission(ctx context.Context, id earthengine.TaskID, kind string, params interface{}) error {
	p, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE ee_tasks
		SET kind = ?, status = ?, progress = NULL, error_message = '', params = ?, layers = '', submitted_at = ?, updated_at = ?
		WHERE id = ?`), kind, earthengine.StatusPending, string(p), now, now, int64(id))
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO ee_tasks
		(id, kind, status, progress, error_message, params, layers, submitted_at, updated_at)
		VALUES (?, ?, ?, NULL, '', ?, '', ?, ?)`), int64(id), kind, earthengine.StatusPending, string(p), now, now)
	if err != nil {
		return fmt.Errorf("insert task %d: %w", id, err)
	}
	return nil
}

// RecordState stores the last polled state of a task.
func (s *Store) RecordState(ctx context.Context, id earthengine.TaskID, status string, progress *float64, errMsg string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE ee_tasks
		SET status = ?, progress = ?, error_message = ?, updated_at = ?
		WHERE id = ?`), status, progress, errMsg, now, int64(id))
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO ee_tasks
		(id, kind, status, progress, error_message, params, layers, submitted_at, updated_at)
		VALUES (?, 'unknown', ?, ?, ?, '', '', ?, ?)`), int64(id), status, progress, errMsg, now, now)
	if err != nil {
		return fmt.Errorf("insert task %d: %w", id, err)
	}
	return nil
}

// SaveResults replaces the stored samples of a task.
func (s *Store) SaveResults(ctx context.Context, id earthengine.TaskID, rs *earthengine.ResultSet) error {
	if rs == nil {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ee_samples WHERE task_id = ?`), int64(id)); err != nil {
		return fmt.Errorf("clear samples of task %d: %w", id, err)
	}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO ee_samples
		(task_id, layer, seq, lat, lng, metric_value, metric_value2) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	var layers []string
	insert := func(layer string, seq int, lat, lng, v float64, v2 *float64) error {
		_, err := stmt.ExecContext(ctx, int64(id), layer, seq, lat, lng, v, v2)
		return err
	}
	if rs.NDVI != nil {
		layers = append(layers, layerNDVI)
		for i, smp := range rs.NDVI {
			if err := insert(layerNDVI, i, smp.Lat, smp.Lng, smp.NDVIMean, nil); err != nil {
				return fmt.Errorf("insert ndvi sample: %w", err)
			}
		}
	}
	if rs.CanopyHeight != nil {
		layers = append(layers, layerCanopy)
		for i, smp := range rs.CanopyHeight {
			if err := insert(layerCanopy, i, smp.Lat, smp.Lng, smp.CanopyHeightMean, nil); err != nil {
				return fmt.Errorf("insert canopy sample: %w", err)
			}
		}
	}
	if rs.Terrain != nil {
		layers = append(layers, layerTerrain)
		for i, smp := range rs.Terrain {
			slope := smp.SlopeMean
			if err := insert(layerTerrain, i, smp.Lat, smp.Lng, smp.ElevationMean, &slope); err != nil {
				return fmt.Errorf("insert terrain sample: %w", err)
			}
		}
	}
	if rs.Water != nil {
		layers = append(layers, layerWater)
		for i, smp := range rs.Water {
			if err := insert(layerWater, i, smp.Lat, smp.Lng, smp.WaterProximity, nil); err != nil {
				return fmt.Errorf("insert water sample: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE ee_tasks SET layers = ?, updated_at = ? WHERE id = ?`),
		strings.Join(layers, ","), s.now(), int64(id)); err != nil {
		return fmt.Errorf("update layers of task %d: %w", id, err)
	}
	return tx.Commit()
}

// LoadResults rebuilds the result set saved for a task. Layers that were
// present but empty come back as empty, non-nil slices.
func (s *Store) LoadResults(ctx context.Context, id earthengine.TaskID) (*earthengine.ResultSet, error) {
	var layers sql.NullString
	err := s.db.GetContext(ctx, &layers, s.db.Rebind(`SELECT layers FROM ee_tasks WHERE id = ?`), int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}

	rs := &earthengine.ResultSet{}
	for _, l := range strings.Split(layers.String, ",") {
		switch l {
		case layerNDVI:
			rs.NDVI = []earthengine.NDVISample{}
		case layerCanopy:
			rs.CanopyHeight = []earthengine.CanopySample{}
		case layerTerrain:
			rs.Terrain = []earthengine.TerrainSample{}
		case layerWater:
			rs.Water = []earthengine.WaterSample{}
		}
	}

	var rows []sampleRow
	err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT layer, seq, lat, lng, metric_value, metric_value2
		FROM ee_samples WHERE task_id = ? ORDER BY layer, seq`), int64(id))
	if err != nil {
		return nil, fmt.Errorf("load samples of task %d: %w", id, err)
	}
	for _, r := range rows {
		switch r.Layer {
		case layerNDVI:
			rs.NDVI = append(rs.NDVI, earthengine.NDVISample{Lat: r.Lat, Lng: r.Lng, NDVIMean: r.Value})
		case layerCanopy:
			rs.CanopyHeight = append(rs.CanopyHeight, earthengine.CanopySample{Lat: r.Lat, Lng: r.Lng, CanopyHeightMean: r.Value})
		case layerTerrain:
			smp := earthengine.TerrainSample{Lat: r.Lat, Lng: r.Lng, ElevationMean: r.Value}
			if r.Value2 != nil {
				smp.SlopeMean = *r.Value2
			}
			rs.Terrain = append(rs.Terrain, smp)
		case layerWater:
			rs.Water = append(rs.Water, earthengine.WaterSample{Lat: r.Lat, Lng: r.Lng, WaterProximity: r.Value})
		}
	}
	return rs, nil
}

// ListTasks returns the most recently updated tasks first.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []TaskRecord
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`SELECT id, kind, status, progress, COALESCE(error_message, '') AS error_message, submitted_at, updated_at
		FROM ee_tasks ORDER BY updated_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}
