// Package cooldown tracks per-goal letter generation windows: a goal that
// produced a letter may not produce another until 24 hours later.
package cooldown

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the minimum time between successful generations per goal.
const DefaultInterval = 24 * time.Hour

// Window records when a goal last generated a letter and when it becomes
// eligible again. Both fields must be populated for the cooldown to apply;
// a partially populated window is treated as "never generated".
type Window struct {
	LastGeneratedAt time.Time `json:"lastGeneratedAt"`
	NextAvailableAt time.Time `json:"nextAvailableAt"`
}

func (w Window) complete() bool {
	return !w.LastGeneratedAt.IsZero() && !w.NextAvailableAt.IsZero()
}

// Persister loads and saves windows so cooldowns survive restarts.
type Persister interface {
	Load() (map[string]Window, error)
	Save(goalID string, w Window) error
}

// Tracker keeps the goalID -> Window map in memory, writing through to an
// optional Persister. Save failures are logged, not surfaced: the in-memory
// window is authoritative for the running process.
type Tracker struct {
	mu       sync.RWMutex
	interval time.Duration
	windows  map[string]Window
	persist  Persister
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides the cooldown interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithNow overrides the clock. Used by tests.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker builds a tracker, loading existing windows from the persister.
// A nil persister keeps windows in memory only.
func NewTracker(persist Persister, options ...Option) (*Tracker, error) {
	t := &Tracker{
		interval: DefaultInterval,
		windows:  make(map[string]Window),
		persist:  persist,
		now:      time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(t)
		}
	}
	if persist != nil {
		windows, err := persist.Load()
		if err != nil {
			return nil, fmt.Errorf("load cooldown windows: %w", err)
		}
		for goalID, w := range windows {
			t.windows[goalID] = w
		}
	}
	return t, nil
}

// TimeUntilNext returns how long until the goal may generate again.
// Zero means eligible now: no recorded success, a partially populated
// window, or an already-elapsed window.
func (t *Tracker) TimeUntilNext(goalID string) time.Duration {
	t.mu.RLock()
	w, ok := t.windows[goalID]
	t.mu.RUnlock()
	if !ok || !w.complete() {
		return 0
	}
	remaining := w.NextAvailableAt.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Window returns the recorded window for a goal, if any.
func (t *Tracker) Window(goalID string) (Window, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.windows[goalID]
	return w, ok
}

// Record marks a successful generation at the given time and returns the
// new window. Callers must invoke this only after the letter is persisted.
func (t *Tracker) Record(goalID string, at time.Time) Window {
	w := Window{
		LastGeneratedAt: at,
		NextAvailableAt: at.Add(t.interval),
	}
	t.mu.Lock()
	t.windows[goalID] = w
	t.mu.Unlock()
	if t.persist != nil {
		if err := t.persist.Save(goalID, w); err != nil {
			slog.Warn("persist cooldown window failed", "goal_id", goalID, "err", err)
		}
	}
	return w
}

// Forget drops a goal's window, e.g. when the goal is deleted.
func (t *Tracker) Forget(goalID string) {
	t.mu.Lock()
	delete(t.windows, goalID)
	t.mu.Unlock()
}
