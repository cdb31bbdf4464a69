package app

import (
	"sync"
	"time"

	"goaljournal/pkg/domain"
)

const historyLimit = 100

// StatusMetadata carries display context for an in-flight generation.
type StatusMetadata struct {
	GoalID       string `json:"goalId"`
	GoalTitle    string `json:"goalTitle"`
	JournalCount int    `json:"journalCount"`
	CollectCount int    `json:"collectCount"`
}

// LetterStatus is one progress snapshot of a letter generation.
type LetterStatus struct {
	Status    string            `json:"status"` // generating | success | error
	Progress  int               `json:"progress"`
	Type      domain.LetterType `json:"type"`
	Error     string            `json:"error,omitempty"`
	StartTime time.Time         `json:"startTime"`
	EndTime   *time.Time        `json:"endTime,omitempty"`
	Metadata  *StatusMetadata   `json:"metadata,omitempty"`
}

// StatusObserver receives progress updates from the orchestrator. It is
// consumed for display only and never influences control flow.
type StatusObserver interface {
	UpdateStatus(LetterStatus)
	AddToHistory(LetterStatus)
}

// StatusRecorder is the default observer: it keeps the current status plus
// a newest-first history capped at 100 entries.
type StatusRecorder struct {
	mu      sync.RWMutex
	current *LetterStatus
	history []LetterStatus
}

// NewStatusRecorder builds an empty recorder.
func NewStatusRecorder() *StatusRecorder {
	return &StatusRecorder{}
}

// UpdateStatus replaces the current status.
func (r *StatusRecorder) UpdateStatus(s LetterStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &s
}

// AddToHistory prepends a snapshot, evicting the oldest beyond the cap.
func (r *StatusRecorder) AddToHistory(s LetterStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append([]LetterStatus{s}, r.history...)
	if len(r.history) > historyLimit {
		r.history = r.history[:historyLimit]
	}
}

// Current returns the latest status, if any.
func (r *StatusRecorder) Current() (LetterStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return LetterStatus{}, false
	}
	return *r.current, true
}

// History returns a copy of the recorded snapshots, newest first.
func (r *StatusRecorder) History() []LetterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LetterStatus, len(r.history))
	copy(out, r.history)
	return out
}
