package cooldown

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestTimeUntilNextUnknownGoal(t *testing.T) {
	tracker, err := NewTracker(nil)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	if d := tracker.TimeUntilNext("g1"); d != 0 {
		t.Fatalf("expected 0 for unknown goal, got %v", d)
	}
}

func TestRecordThenTimeUntilNext(t *testing.T) {
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	now := base
	tracker, err := NewTracker(nil, WithNow(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}

	w := tracker.Record("g1", base)
	if !w.NextAvailableAt.Equal(base.Add(24 * time.Hour)) {
		t.Fatalf("unexpected next available: %v", w.NextAvailableAt)
	}

	// Immediately after: full window remaining.
	if d := tracker.TimeUntilNext("g1"); d != 24*time.Hour {
		t.Fatalf("expected 24h remaining, got %v", d)
	}

	// Partway through: remaining equals (T+24h) - T'.
	now = base.Add(9 * time.Hour)
	if d := tracker.TimeUntilNext("g1"); d != 15*time.Hour {
		t.Fatalf("expected 15h remaining, got %v", d)
	}

	// Exactly at expiry and beyond: eligible again.
	now = base.Add(24 * time.Hour)
	if d := tracker.TimeUntilNext("g1"); d != 0 {
		t.Fatalf("expected 0 at expiry, got %v", d)
	}
	now = base.Add(48 * time.Hour)
	if d := tracker.TimeUntilNext("g1"); d != 0 {
		t.Fatalf("expected 0 after expiry, got %v", d)
	}

	// Other goals are unaffected.
	if d := tracker.TimeUntilNext("g2"); d != 0 {
		t.Fatalf("expected 0 for other goal, got %v", d)
	}
}

func TestPartialWindowDoesNotApply(t *testing.T) {
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	tracker, err := NewTracker(nil, WithNow(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	tracker.mu.Lock()
	tracker.windows["g1"] = Window{NextAvailableAt: base.Add(time.Hour)}
	tracker.windows["g2"] = Window{LastGeneratedAt: base}
	tracker.mu.Unlock()

	if d := tracker.TimeUntilNext("g1"); d != 0 {
		t.Fatalf("window without lastGeneratedAt should not apply, got %v", d)
	}
	if d := tracker.TimeUntilNext("g2"); d != 0 {
		t.Fatalf("window without nextAvailableAt should not apply, got %v", d)
	}
}

func TestForget(t *testing.T) {
	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	tracker, err := NewTracker(nil, WithNow(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	tracker.Record("g1", base)
	tracker.Forget("g1")
	if d := tracker.TimeUntilNext("g1"); d != 0 {
		t.Fatalf("expected 0 after forget, got %v", d)
	}
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	persister := NewRedisPersister(redis.Addr(), "")

	base := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)
	tracker, err := NewTracker(persister, WithNow(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	tracker.Record("g1", base)

	// A fresh tracker reloads the persisted window.
	reloaded, err := NewTracker(persister, WithNow(func() time.Time { return base.Add(time.Hour) }))
	if err != nil {
		t.Fatalf("reload tracker: %v", err)
	}
	w, ok := reloaded.Window("g1")
	if !ok {
		t.Fatalf("expected persisted window for g1")
	}
	if !w.LastGeneratedAt.Equal(base) || !w.NextAvailableAt.Equal(base.Add(24*time.Hour)) {
		t.Fatalf("unexpected window: %+v", w)
	}
	if d := reloaded.TimeUntilNext("g1"); d != 23*time.Hour {
		t.Fatalf("expected 23h remaining after reload, got %v", d)
	}
}
