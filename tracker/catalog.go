package tracker

import (
	"context"
	"fmt"

	"ee-insight/earthengine"
)

// CheckStatus never fails: a transport failure is reported as status "error".
func (s *Session) CheckStatus(ctx context.Context) earthengine.ConnectionStatus {
	st, err := s.backend.Status(ctx)
	if err != nil {
		s.opts.Logger.Writef("[STATUS_FAIL] session=%s err=%v", s.id, err)
		return earthengine.ConnectionStatus{Status: StatusError, Message: "Failed to connect to Earth Engine API"}
	}
	return st
}

// EnsureConnected checks the backend before a processing dialog is offered
// and raises a banner when the connection is down.
func (s *Session) EnsureConnected(ctx context.Context) (earthengine.ConnectionStatus, bool) {
	st := s.CheckStatus(ctx)
	if !st.OK() {
		s.opts.Observer.TaskError("Earth Engine connection failed: " + st.Message)
		return st, false
	}
	return st, true
}

// Datasets never fails; on error the list is empty.
func (s *Session) Datasets(ctx context.Context) []earthengine.Dataset {
	ds, err := s.backend.Datasets(ctx)
	if err != nil {
		s.opts.Logger.Writef("[DATASETS_FAIL] session=%s err=%v", s.id, err)
		return []earthengine.Dataset{}
	}
	if ds == nil {
		ds = []earthengine.Dataset{}
	}
	return ds
}

// ProcessCell runs the synchronous single-cell pipeline.
func (s *Session) ProcessCell(ctx context.Context, cellID string) (earthengine.CellResult, error) {
	res, err := s.backend.ProcessCell(ctx, cellID)
	if err != nil {
		s.opts.Logger.Writef("[CELL_FAIL] cell=%s err=%v", cellID, err)
		s.opts.Observer.TaskError("Failed to process cell with Earth Engine: " + err.Error())
		return nil, fmt.Errorf("process cell %s: %w", cellID, err)
	}
	return res, nil
}
