package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"ee-insight/earthengine"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "ee.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(f float64) *float64 { return &f }

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("oracle", "x")
	require.Error(t, err)
}

func TestRecordSubmissionAndState(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	req := earthengine.ProcessCellsRequest{CellIDs: []string{"c1"}, DataSources: []string{"USGS/SRTMGL1_003"}}
	require.NoError(t, s.RecordSubmission(ctx, 7, "cells", req))

	clock = clock.Add(5 * time.Second)
	require.NoError(t, s.RecordState(ctx, 7, earthengine.StatusRunning, ptr(0.42), ""))

	tasks, err := s.ListTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, earthengine.TaskID(7), tasks[0].ID)
	require.Equal(t, "cells", tasks[0].Kind)
	require.Equal(t, earthengine.StatusRunning, tasks[0].Status)
	require.NotNil(t, tasks[0].Progress)
	require.InDelta(t, 0.42, *tasks[0].Progress, 1e-9)
	require.True(t, tasks[0].UpdatedAt.After(tasks[0].SubmittedAt))

	require.NoError(t, s.RecordState(ctx, 7, earthengine.StatusFailed, nil, "quota exceeded"))
	tasks, err = s.ListTasks(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, "quota exceeded", tasks[0].Error)
	require.Nil(t, tasks[0].Progress)
}

func TestRecordStateWithoutSubmission(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.RecordState(ctx, 3, earthengine.StatusQueued, nil, ""))

	tasks, err := s.ListTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "unknown", tasks[0].Kind)
}

func TestListTasksNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	for id := earthengine.TaskID(1); id <= 3; id++ {
		clock = clock.Add(time.Minute)
		require.NoError(t, s.RecordSubmission(ctx, id, "region", nil))
	}

	tasks, err := s.ListTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, earthengine.TaskID(3), tasks[0].ID)
	require.Equal(t, earthengine.TaskID(2), tasks[1].ID)
}

func TestSaveAndLoadResults(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.RecordSubmission(ctx, 9, "region", nil))

	rs := &earthengine.ResultSet{
		NDVI: []earthengine.NDVISample{
			{Lat: 1, Lng: 2, NDVIMean: 0.5},
			{Lat: 1.5, Lng: 2.5, NDVIMean: -0.1},
		},
		Terrain: []earthengine.TerrainSample{{Lat: 3, Lng: 4, ElevationMean: 1200, SlopeMean: 12}},
		Water:   []earthengine.WaterSample{},
	}
	require.NoError(t, s.SaveResults(ctx, 9, rs))

	got, err := s.LoadResults(ctx, 9)
	require.NoError(t, err)
	if diff := cmp.Diff(rs, got); diff != "" {
		t.Errorf("LoadResults mismatch (-want +got):\n%s", diff)
	}
	require.Nil(t, got.CanopyHeight)
	require.NotNil(t, got.Water)
}

func TestSaveResultsReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.RecordSubmission(ctx, 4, "cells", nil))

	first := &earthengine.ResultSet{CanopyHeight: []earthengine.CanopySample{{Lat: 1, Lng: 1, CanopyHeightMean: 20}}}
	second := &earthengine.ResultSet{NDVI: []earthengine.NDVISample{{Lat: 2, Lng: 2, NDVIMean: 0.3}}}
	require.NoError(t, s.SaveResults(ctx, 4, first))
	require.NoError(t, s.SaveResults(ctx, 4, second))

	got, err := s.LoadResults(ctx, 4)
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("LoadResults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadResultsUnknownTask(t *testing.T) {
	s := openTest(t)
	_, err := s.LoadResults(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
