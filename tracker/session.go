package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ee-insight/config"
	"ee-insight/earthengine"
	"ee-insight/logging"
	"ee-insight/render"
	"ee-insight/utils"
)

// ErrSuperseded is returned by Handle.Wait when another submission or Stop
// ended tracking before the task reached a terminal state.
var ErrSuperseded = errors.New("task tracking superseded")

type Options struct {
	Interval    time.Duration // default 5s
	DataSources []string      // default earthengine.DefaultDataSources
	Observer    Observer
	Layers      *render.LayerSet
	Recorder    Recorder
	Metrics     Metrics
	Logger      *logging.Logger
	NewTicker   TickerFactory
}

// Session owns the active task and its poll timer. At most one task is
// tracked at a time; a new submission cancels the previous one.
type Session struct {
	id      string
	backend Backend
	opts    Options

	// emit serialises the check-then-notify of a poll with submissions,
	// so a superseded poll can never publish after the next task started.
	emit   sync.Mutex
	mu     sync.Mutex
	active *tracking
}

type tracking struct {
	id         earthengine.TaskID
	ticker     Ticker
	cancel     context.CancelFunc
	done       chan struct{}
	last       TaskState
	superseded bool
}

func NewSession(backend Backend, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = config.DefaultPollInterval
	}
	opts.DataSources = earthengine.DataSources(opts.DataSources)
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	return &Session{id: utils.NewSessionID(), backend: backend, opts: opts}
}

func (s *Session) ID() string { return s.id }

// Active returns the id of the task currently being polled.
func (s *Session) Active() (earthengine.TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	return s.active.id, true
}

// SubmitRegion asks the backend to process every cell inside bbox. A
// maxCells of 0 uses the default of 50.
func (s *Session) SubmitRegion(ctx context.Context, bbox earthengine.BoundingBox, maxCells int) (*Handle, error) {
	if maxCells == 0 {
		maxCells = config.DefaultMaxCells
	}
	if maxCells < 1 || maxCells > config.MaxCellsLimit {
		err := fmt.Errorf("max cells must be between 1 and %d", config.MaxCellsLimit)
		s.opts.Observer.TaskError(err.Error())
		return nil, err
	}
	if err := bbox.Validate(); err != nil {
		s.opts.Observer.TaskError("Invalid bounding box: " + err.Error())
		return nil, err
	}
	req := earthengine.ProcessRegionRequest{
		BoundingBox: bbox,
		DataSources: s.opts.DataSources,
		MaxCells:    maxCells,
	}
	info, err := s.backend.ProcessRegion(ctx, req)
	if err != nil {
		s.opts.Logger.Writef("[SUBMIT_FAIL] session=%s kind=region err=%v", s.id, err)
		s.opts.Observer.TaskError("Failed to start Earth Engine processing task")
		return nil, fmt.Errorf("process region: %w", err)
	}
	s.submitted(ctx, info.TaskID, "region", req)
	return s.track(info.TaskID), nil
}

// SubmitCells asks the backend to process the given grid cells.
func (s *Session) SubmitCells(ctx context.Context, cellIDs []string) (*Handle, error) {
	if len(cellIDs) == 0 {
		err := errors.New("no cell ids given")
		s.opts.Observer.TaskError("Failed to start Earth Engine cell processing task")
		return nil, err
	}
	req := earthengine.ProcessCellsRequest{
		CellIDs:     append([]string(nil), cellIDs...),
		DataSources: s.opts.DataSources,
	}
	info, err := s.backend.ProcessCells(ctx, req)
	if err != nil {
		s.opts.Logger.Writef("[SUBMIT_FAIL] session=%s kind=cells err=%v", s.id, err)
		s.opts.Observer.TaskError("Failed to start Earth Engine cell processing task")
		return nil, fmt.Errorf("process cells: %w", err)
	}
	s.submitted(ctx, info.TaskID, "cells", req)
	return s.track(info.TaskID), nil
}

func (s *Session) submitted(ctx context.Context, id earthengine.TaskID, kind string, params interface{}) {
	s.opts.Logger.Writef("[SUBMIT] session=%s task=%d kind=%s", s.id, id, kind)
	if s.opts.Metrics != nil {
		s.opts.Metrics.TaskSubmitted(kind)
	}
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.RecordSubmission(ctx, id, kind, params); err != nil {
			s.opts.Logger.Writef("[STORE_FAIL] task=%d record submission: %v", id, err)
		}
	}
}

// track stops any previous timer and starts polling id.
func (s *Session) track(id earthengine.TaskID) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	t := &tracking{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		last:   TaskState{ID: id, Status: earthengine.StatusPending},
	}

	s.emit.Lock()
	s.mu.Lock()
	if s.active != nil {
		s.release(s.active, true)
	}
	t.ticker = s.opts.NewTicker(s.opts.Interval)
	s.active = t
	s.mu.Unlock()
	s.opts.Observer.TaskStatus(StatusUpdate{TaskID: id, Status: earthengine.StatusPending, Message: "Processing started"})
	s.emit.Unlock()

	go s.loop(ctx, t)
	return &Handle{TaskID: id, t: t, s: s}
}

// release stops t's timer and cancels its in-flight request. Caller holds s.mu.
func (s *Session) release(t *tracking, superseded bool) {
	t.ticker.Stop()
	t.cancel()
	t.superseded = superseded
	if s.active == t {
		s.active = nil
	}
	if superseded {
		s.opts.Logger.Writef("[CANCEL] session=%s task=%d", s.id, t.id)
	}
}

// Stop abandons tracking of the active task, if any.
func (s *Session) Stop() {
	s.emit.Lock()
	defer s.emit.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.release(s.active, true)
	}
}

func (s *Session) loop(ctx context.Context, t *tracking) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.ticker.C():
			state := s.pollOnce(ctx, t.id, t)
			if state.Terminal() || ctx.Err() != nil {
				return
			}
		}
	}
}

// Poll fetches the state of id once and applies it: terminal states stop
// tracking when id is the active task. It never fails; transport errors
// come back as a state with status "error".
func (s *Session) Poll(ctx context.Context, id earthengine.TaskID) TaskState {
	s.mu.Lock()
	t := s.active
	s.mu.Unlock()
	if t != nil && t.id != id {
		t = nil
	}
	return s.pollOnce(ctx, id, t)
}

func (s *Session) pollOnce(ctx context.Context, id earthengine.TaskID, t *tracking) TaskState {
	state, err := s.fetch(ctx, id)
	s.emit.Lock()
	defer s.emit.Unlock()
	if t != nil {
		s.mu.Lock()
		current := s.active == t
		if current {
			t.last = state
		}
		s.mu.Unlock()
		if !current {
			// superseded while the request was in flight
			return state
		}
	}
	s.apply(ctx, t, state, err)
	return state
}

// fetch only fails when the backend gave no readable status. Results that
// do not decode leave a completed state with resultsErr set.
func (s *Session) fetch(ctx context.Context, id earthengine.TaskID) (TaskState, error) {
	resp, err := s.backend.Task(ctx, id)
	if err != nil {
		return TaskState{ID: id, Status: StatusError, Error: err.Error()}, err
	}
	state := TaskState{
		ID:       id,
		Status:   resp.Status,
		Progress: resp.Progress,
		Error:    resp.Error,
	}
	if state.Status == earthengine.StatusCompleted {
		state.Results, state.resultsErr = resp.DecodeResults()
		if state.resultsErr != nil {
			state.Error = state.resultsErr.Error()
		}
	}
	return state, nil
}

func (s *Session) apply(ctx context.Context, t *tracking, state TaskState, pollErr error) {
	obs := s.opts.Observer
	if pollErr != nil {
		s.opts.Logger.Writef("[POLL_FAIL] task=%d err=%s", state.ID, state.Error)
		s.pollDone(StatusError)
		obs.TaskError("Failed to check task status")
		return
	}
	s.pollDone("ok")
	s.record(ctx, state)

	switch state.Status {
	case earthengine.StatusCompleted:
		s.finish(t, state)
		if state.resultsErr != nil {
			s.opts.Logger.Writef("[COMPLETE] task=%d unreadable results: %v", state.ID, state.resultsErr)
			obs.TaskStatus(StatusUpdate{
				TaskID:   state.ID,
				Status:   state.Status,
				Message:  "Processing complete, but the results could not be loaded",
				Progress: 100,
				Error:    state.Error,
			})
			return
		}
		obs.TaskStatus(StatusUpdate{TaskID: state.ID, Status: state.Status, Message: "Processing complete", Progress: 100})
		if s.opts.Layers != nil {
			counts := s.opts.Layers.Render(state.Results)
			s.opts.Logger.Writef("[COMPLETE] task=%d samples=%d layers=%v", state.ID, state.Results.Len(), counts)
		} else {
			s.opts.Logger.Writef("[COMPLETE] task=%d samples=%d", state.ID, state.Results.Len())
		}
		obs.TaskResults(state.ID, state.Results)
		if s.opts.Recorder != nil && state.Results != nil {
			// finish cancelled the loop context
			if err := s.opts.Recorder.SaveResults(context.WithoutCancel(ctx), state.ID, state.Results); err != nil {
				s.opts.Logger.Writef("[STORE_FAIL] task=%d save results: %v", state.ID, err)
			}
		}
	case earthengine.StatusFailed:
		s.finish(t, state)
		s.opts.Logger.Writef("[FAIL] task=%d err=%s", state.ID, state.Error)
		obs.TaskStatus(StatusUpdate{
			TaskID:  state.ID,
			Status:  state.Status,
			Message: "Processing failed: " + state.Error,
			Error:   state.Error,
		})
	default:
		label, percent := DisplayProgress(state.Progress)
		s.opts.Logger.Writef("[POLL] task=%d status=%s progress=%s", state.ID, state.Status, label)
		obs.TaskStatus(StatusUpdate{
			TaskID:   state.ID,
			Status:   state.Status,
			Message:  "Processing in progress: " + label,
			Progress: percent,
		})
	}
}

// finish ends tracking after a terminal state.
func (s *Session) finish(t *tracking, state TaskState) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.TaskFinished(state.Status)
	}
	if t == nil {
		return
	}
	s.mu.Lock()
	t.last = state
	if s.active == t {
		s.release(t, false)
	}
	s.mu.Unlock()
}

func (s *Session) pollDone(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.PollDone(outcome)
	}
}

func (s *Session) record(ctx context.Context, state TaskState) {
	if s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordState(context.WithoutCancel(ctx), state.ID, state.Status, state.Progress, state.Error); err != nil {
		s.opts.Logger.Writef("[STORE_FAIL] task=%d record state: %v", state.ID, err)
	}
}

// Handle follows one submitted task.
type Handle struct {
	TaskID earthengine.TaskID
	t      *tracking
	s      *Session
}

// Done is closed when tracking of the task ends.
func (h *Handle) Done() <-chan struct{} { return h.t.done }

// Wait blocks until the task is terminal, superseded, or ctx ends.
func (h *Handle) Wait(ctx context.Context) (TaskState, error) {
	select {
	case <-ctx.Done():
		return TaskState{}, ctx.Err()
	case <-h.t.done:
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.t.last.Terminal() {
		return h.t.last, nil
	}
	if h.t.superseded {
		return h.t.last, ErrSuperseded
	}
	return h.t.last, nil
}
