package view

import (
	"testing"
	"time"

	"ee-insight/earthengine"
	"ee-insight/tracker"
)

func TestBannerExpires(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	b := NewBoard(10 * time.Second)
	b.now = func() time.Time { return now }

	b.TaskError("Failed to check task status")
	snap := b.Snapshot()
	if snap.Banner == nil || snap.Banner.Message != "Failed to check task status" {
		t.Fatalf("Expected banner, got %+v", snap.Banner)
	}

	now = now.Add(9999 * time.Millisecond)
	if b.Snapshot().Banner == nil {
		t.Error("banner should still be visible before 10s")
	}
	now = now.Add(time.Millisecond)
	if b.Snapshot().Banner != nil {
		t.Error("banner should be gone after 10s")
	}
}

func TestStatusAndDismiss(t *testing.T) {
	b := NewBoard(10 * time.Second)
	b.SetSessionID("s-1")
	b.TaskStatus(tracker.StatusUpdate{TaskID: 7, Status: "running", Message: "Processing in progress: 42%", Progress: 42})

	snap := b.Snapshot()
	if snap.Status == nil || snap.Status.TaskID != 7 || snap.SessionID != "s-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	b.Dismiss()
	if b.Snapshot().Status != nil {
		t.Error("status should be dismissed")
	}
}

func TestResultsKept(t *testing.T) {
	b := NewBoard(time.Second)
	rs := &earthengine.ResultSet{Water: []earthengine.WaterSample{{WaterProximity: 12}}}
	b.TaskResults(9, rs)
	id, got := b.Results()
	if id != 9 || got != rs {
		t.Errorf("unexpected results %d %v", id, got)
	}
}
