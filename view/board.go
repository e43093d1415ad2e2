// Package view keeps the data behind the task status widget and the error
// banner. The host page renders it; nothing here produces markup.
package view

import (
	"sync"
	"time"

	"ee-insight/earthengine"
	"ee-insight/tracker"
)

type Banner struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Snapshot struct {
	SessionID string                `json:"session_id,omitempty"`
	Status    *tracker.StatusUpdate `json:"status,omitempty"`
	Banner    *Banner               `json:"banner,omitempty"`
}

// Board implements tracker.Observer.
type Board struct {
	mu         sync.Mutex
	bannerTTL  time.Duration
	now        func() time.Time
	sessionID  string
	status     *tracker.StatusUpdate
	banner     *Banner
	lastTaskID earthengine.TaskID
	results    *earthengine.ResultSet
}

func NewBoard(bannerTTL time.Duration) *Board {
	return &Board{bannerTTL: bannerTTL, now: time.Now}
}

func (b *Board) SetSessionID(id string) {
	b.mu.Lock()
	b.sessionID = id
	b.mu.Unlock()
}

func (b *Board) TaskStatus(u tracker.StatusUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = &u
}

// TaskError shows a banner that disappears after the banner TTL.
func (b *Board) TaskError(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banner = &Banner{Message: message, ExpiresAt: b.now().Add(b.bannerTTL)}
}

func (b *Board) TaskResults(id earthengine.TaskID, rs *earthengine.ResultSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastTaskID = id
	b.results = rs
}

// Results returns the last completed result set.
func (b *Board) Results() (earthengine.TaskID, *earthengine.ResultSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTaskID, b.results
}

// Dismiss closes the status widget.
func (b *Board) Dismiss() {
	b.mu.Lock()
	b.status = nil
	b.mu.Unlock()
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{SessionID: b.sessionID}
	if b.status != nil {
		st := *b.status
		snap.Status = &st
	}
	if b.banner != nil {
		if b.now().Before(b.banner.ExpiresAt) {
			bn := *b.banner
			snap.Banner = &bn
		} else {
			b.banner = nil
		}
	}
	return snap
}
