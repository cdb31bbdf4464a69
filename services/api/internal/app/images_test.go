package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"goaljournal/pkg/domain"
)

func TestPoolImageSourceNoRepeatsUntilExhausted(t *testing.T) {
	src := NewPoolImageSource(rand.NewSource(1))
	ctx := context.Background()

	pool := letterImagePools[domain.LetterGoalCreated]
	seen := make(map[string]bool)
	for i := 0; i < len(pool); i++ {
		url := src.FrontImage(ctx, "u1", domain.LetterGoalCreated, "目標")
		if seen[url] {
			t.Fatalf("image %q repeated before pool exhausted", url)
		}
		seen[url] = true
	}
	if len(seen) != len(pool) {
		t.Fatalf("expected whole pool served, got %d of %d", len(seen), len(pool))
	}

	// Exhausted pool resets and serves again.
	url := src.FrontImage(ctx, "u1", domain.LetterGoalCreated, "目標")
	if !seen[url] {
		t.Fatalf("reset pool served unknown image %q", url)
	}
}

func TestPoolImageSourceTracksPerUserAndType(t *testing.T) {
	src := NewPoolImageSource(rand.NewSource(1))
	ctx := context.Background()

	// weekly_review only has two images; drain them for u1.
	first := src.FrontImage(ctx, "u1", domain.LetterWeeklyReview, "目標")
	second := src.FrontImage(ctx, "u1", domain.LetterWeeklyReview, "目標")
	if first == second {
		t.Fatalf("u1 got %q twice", first)
	}

	// A different user still has the full pool.
	otherSeen := map[string]bool{}
	otherSeen[src.FrontImage(ctx, "u2", domain.LetterWeeklyReview, "目標")] = true
	otherSeen[src.FrontImage(ctx, "u2", domain.LetterWeeklyReview, "目標")] = true
	if len(otherSeen) != 2 {
		t.Fatalf("expected u2 to see both pool images, got %v", otherSeen)
	}
}

func TestAIImageSourceReturnsGeneratedURL(t *testing.T) {
	src := NewAIImageSource(&stubImageGen{url: "https://img.example/cover.png"}, nil)
	url := src.FrontImage(context.Background(), "u1", domain.LetterDailyFeedback, "學習日文")
	if url != "https://img.example/cover.png" {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestAIImageSourceFallbackPerType(t *testing.T) {
	src := NewAIImageSource(&stubImageGen{err: fmt.Errorf("down")}, nil)
	ctx := context.Background()
	cases := map[domain.LetterType]string{
		domain.LetterGoalCreated:   "/images/goal_created/Frame 19.png",
		domain.LetterDailyFeedback: "/images/daily_feedback/Frame 2.png",
		domain.LetterWeeklyReview:  "/images/weekly_review/Frame 1.png",
	}
	for letterType, want := range cases {
		if got := src.FrontImage(ctx, "u1", letterType, "目標"); got != want {
			t.Fatalf("%s: expected %q, got %q", letterType, want, got)
		}
	}
}

type stubArchiver struct {
	url string
	err error
}

func (s *stubArchiver) Archive(ctx context.Context, userID, srcURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

func TestAIImageSourceArchiverFailureKeepsOriginalURL(t *testing.T) {
	src := NewAIImageSource(
		&stubImageGen{url: "https://img.example/cover.png"},
		&stubArchiver{err: fmt.Errorf("bucket down")},
	)
	url := src.FrontImage(context.Background(), "u1", domain.LetterDailyFeedback, "目標")
	if url != "https://img.example/cover.png" {
		t.Fatalf("expected original url kept, got %q", url)
	}

	src = NewAIImageSource(
		&stubImageGen{url: "https://img.example/cover.png"},
		&stubArchiver{url: "https://cdn.example/archived.png"},
	)
	url = src.FrontImage(context.Background(), "u1", domain.LetterDailyFeedback, "目標")
	if url != "https://cdn.example/archived.png" {
		t.Fatalf("expected archived url, got %q", url)
	}
}

func TestImagePromptMentionsGoal(t *testing.T) {
	for _, letterType := range []domain.LetterType{
		domain.LetterGoalCreated, domain.LetterDailyFeedback, domain.LetterWeeklyReview,
	} {
		prompt := imagePrompt(letterType, "學習日文")
		if !strings.Contains(prompt, "學習日文") {
			t.Fatalf("%s prompt does not mention the goal: %q", letterType, prompt)
		}
	}
}
