package store

import (
	"fmt"
	"testing"
	"time"

	"goaljournal/pkg/domain"
)

func seedGoal(t *testing.T, s *MemoryStore, goalID, userID string) {
	t.Helper()
	if err := s.SaveGoal(domain.Goal{
		ID: goalID, Title: "目標", UserID: userID,
		CreatedAt: time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("save goal: %v", err)
	}
}

func TestDeleteGoalCascades(t *testing.T) {
	s := NewMemoryStore()
	seedGoal(t, s, "g1", "u1")
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)

	if err := s.SaveJournalEntry(domain.JournalEntry{ID: "j1", Content: "x", GoalID: "g1", UserID: "u1", CreatedAt: base}); err != nil {
		t.Fatalf("save journal: %v", err)
	}
	if err := s.SaveCollect(domain.Collect{ID: "c1", Type: domain.CollectText, Content: "x", GoalID: "g1", UserID: "u1", CreatedAt: base}); err != nil {
		t.Fatalf("save collect: %v", err)
	}
	if err := s.SaveLetter(domain.Letter{ID: "l1", Type: domain.LetterGoalCreated, GoalID: "g1", UserID: "u1", CreatedAt: base}); err != nil {
		t.Fatalf("save letter: %v", err)
	}
	if err := s.UpsertScheduledTask(domain.ScheduledTask{GoalID: "g1", UserID: "u1", UpdatedAt: base}); err != nil {
		t.Fatalf("upsert task: %v", err)
	}

	if err := s.DeleteGoal("g1"); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if entries, _ := s.ListJournalEntries("g1"); len(entries) != 0 {
		t.Fatalf("journals survived goal deletion")
	}
	if collects, _ := s.ListCollectsByGoal("g1"); len(collects) != 0 {
		t.Fatalf("collects survived goal deletion")
	}
	if letters, _ := s.ListLettersByGoal("g1"); len(letters) != 0 {
		t.Fatalf("letters survived goal deletion")
	}
	if _, ok, _ := s.GetScheduledTask("g1"); ok {
		t.Fatalf("scheduled task survived goal deletion")
	}
}

func TestListRecentJournalEntriesOrderAndLimit(t *testing.T) {
	s := NewMemoryStore()
	seedGoal(t, s, "g1", "u1")
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		entry := domain.JournalEntry{
			ID:        fmt.Sprintf("j%02d", i),
			Content:   "x",
			GoalID:    "g1",
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveJournalEntry(entry); err != nil {
			t.Fatalf("save entry: %v", err)
		}
	}
	entries, err := s.ListRecentJournalEntries("g1", 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	if entries[0].ID != "j14" || entries[9].ID != "j05" {
		t.Fatalf("unexpected order: first=%s last=%s", entries[0].ID, entries[9].ID)
	}
}

func TestCountJournalEntriesScopedToUser(t *testing.T) {
	s := NewMemoryStore()
	seedGoal(t, s, "g1", "u1")
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	for i, userID := range []string{"u1", "u1", "u2"} {
		if err := s.SaveJournalEntry(domain.JournalEntry{
			ID: fmt.Sprintf("j%d", i), Content: "x", GoalID: "g1", UserID: userID, CreatedAt: base,
		}); err != nil {
			t.Fatalf("save entry: %v", err)
		}
	}
	count, err := s.CountJournalEntries("g1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries for u1, got %d", count)
	}
}

func TestMarkLetterReadOnlyOnce(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	if err := s.SaveLetter(domain.Letter{ID: "l1", Type: domain.LetterGoalCreated, GoalID: "g1", UserID: "u1", CreatedAt: base}); err != nil {
		t.Fatalf("save letter: %v", err)
	}
	if err := s.MarkLetterRead("l1", base.Add(time.Hour)); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.MarkLetterRead("l1", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	letter, _, _ := s.GetLetter("l1")
	if letter.ReadAt == nil || !letter.ReadAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("read_at moved on second mark: %v", letter.ReadAt)
	}
}
