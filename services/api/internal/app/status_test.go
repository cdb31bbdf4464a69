package app

import (
	"fmt"
	"testing"
	"time"

	"goaljournal/pkg/domain"
)

func TestStatusRecorderCurrent(t *testing.T) {
	r := NewStatusRecorder()
	if _, ok := r.Current(); ok {
		t.Fatalf("expected no current status on a fresh recorder")
	}
	r.UpdateStatus(LetterStatus{Status: "generating", Progress: 30, Type: domain.LetterDailyFeedback})
	current, ok := r.Current()
	if !ok || current.Progress != 30 {
		t.Fatalf("unexpected current: %+v", current)
	}
}

func TestStatusRecorderHistoryCapped(t *testing.T) {
	r := NewStatusRecorder()
	start := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	for i := 0; i < historyLimit+20; i++ {
		r.AddToHistory(LetterStatus{
			Status:    "success",
			Progress:  100,
			Type:      domain.LetterDailyFeedback,
			Error:     fmt.Sprintf("%d", i),
			StartTime: start.Add(time.Duration(i) * time.Minute),
		})
	}
	history := r.History()
	if len(history) != historyLimit {
		t.Fatalf("expected history capped at %d, got %d", historyLimit, len(history))
	}
	// Newest snapshot first, oldest evicted.
	if history[0].Error != fmt.Sprintf("%d", historyLimit+19) {
		t.Fatalf("expected newest first, got %s", history[0].Error)
	}
	if history[len(history)-1].Error != "20" {
		t.Fatalf("expected oldest surviving entry 20, got %s", history[len(history)-1].Error)
	}
}
