package tracker

import (
	"context"
	"fmt"
	"math"
	"time"

	"ee-insight/earthengine"
)

// StatusError marks a poll that never got a readable backend answer
// (transport or decode failure). It is not terminal. The session tells it
// apart from a backend that reports "error" itself by the fetch error.
const StatusError = "error"

// TaskState is the tracker's view of one processing task.
type TaskState struct {
	ID       earthengine.TaskID     `json:"task_id"`
	Status   string                 `json:"status"`
	Progress *float64               `json:"progress,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Results  *earthengine.ResultSet `json:"-"`

	resultsErr error
}

func (s TaskState) Terminal() bool {
	return s.Status == earthengine.StatusCompleted || s.Status == earthengine.StatusFailed
}

// DisplayProgress converts a backend fraction into a rounded percentage
// label and a bar width in [0,100]. Without a fraction the label is "unknown".
func DisplayProgress(fraction *float64) (label string, percent float64) {
	if fraction == nil || math.IsNaN(*fraction) {
		return "unknown", 0
	}
	percent = math.Max(0, math.Min(100, *fraction*100))
	return fmt.Sprintf("%d%%", int(math.Round(percent))), percent
}

// StatusUpdate is what the status widget shows for the active task.
type StatusUpdate struct {
	TaskID   earthengine.TaskID `json:"task_id"`
	Status   string             `json:"status"`
	Message  string             `json:"message"`
	Progress float64            `json:"progress"`
	Error    string             `json:"error,omitempty"`
}

// Observer receives everything the user should see.
type Observer interface {
	TaskStatus(u StatusUpdate)
	TaskError(message string)
	TaskResults(id earthengine.TaskID, rs *earthengine.ResultSet)
}

// Backend is the subset of *earthengine.Client the session needs.
type Backend interface {
	Status(ctx context.Context) (earthengine.ConnectionStatus, error)
	Datasets(ctx context.Context) ([]earthengine.Dataset, error)
	ProcessRegion(ctx context.Context, req earthengine.ProcessRegionRequest) (earthengine.TaskInfo, error)
	ProcessCells(ctx context.Context, req earthengine.ProcessCellsRequest) (earthengine.TaskInfo, error)
	ProcessCell(ctx context.Context, cellID string) (earthengine.CellResult, error)
	Task(ctx context.Context, id earthengine.TaskID) (earthengine.TaskResponse, error)
}

// Recorder persists submissions, polled states and results.
type Recorder interface {
	RecordSubmission(ctx context.Context, id earthengine.TaskID, kind string, params interface{}) error
	RecordState(ctx context.Context, id earthengine.TaskID, status string, progress *float64, errMsg string) error
	SaveResults(ctx context.Context, id earthengine.TaskID, rs *earthengine.ResultSet) error
}

type Metrics interface {
	TaskSubmitted(kind string)
	PollDone(outcome string)
	TaskFinished(status string)
}

// Ticker is the part of *time.Ticker the poll loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type nopObserver struct{}

func (nopObserver) TaskStatus(StatusUpdate)                                {}
func (nopObserver) TaskError(string)                                       {}
func (nopObserver) TaskResults(earthengine.TaskID, *earthengine.ResultSet) {}
