package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"goaljournal/pkg/ai"
	"goaljournal/pkg/domain"
)

// ImageSource picks a cover image for a letter. FrontImage never fails:
// any sourcing problem degrades to a per-type fallback URL.
type ImageSource interface {
	FrontImage(ctx context.Context, userID string, letterType domain.LetterType, goalTitle string) string
}

// Curated cover pools per letter type, last refreshed 2025/3/18.
var letterImagePools = map[domain.LetterType][]string{
	domain.LetterGoalCreated: {
		"/images/goal_created/Frame 19.png",
		"/images/goal_created/Frame 20.png",
		"/images/goal_created/Frame 25.png",
		"/images/goal_created/Frame 26.png",
		"/images/goal_created/image1.jpg",
	},
	domain.LetterDailyFeedback: {
		"/images/daily_feedback/Frame 2.png",
		"/images/daily_feedback/Frame 3.png",
		"/images/daily_feedback/Frame 4.png",
		"/images/daily_feedback/Frame 6.png",
		"/images/daily_feedback/Frame 7.png",
		"/images/daily_feedback/Frame 8.png",
		"/images/daily_feedback/Frame 9.png",
		"/images/daily_feedback/Frame 10.png",
		"/images/daily_feedback/Frame 11.png",
		"/images/daily_feedback/Frame 12.png",
		"/images/daily_feedback/Frame 13.png",
		"/images/daily_feedback/Frame 14.png",
		"/images/daily_feedback/Frame 15.png",
		"/images/daily_feedback/Frame 16.png",
		"/images/daily_feedback/Frame 17.png",
		"/images/daily_feedback/Frame 18.png",
		"/images/daily_feedback/Frame 21.png",
		"/images/daily_feedback/Frame 23.png",
		"/images/daily_feedback/Frame 29.png",
	},
	domain.LetterWeeklyReview: {
		"/images/weekly_review/Frame 1.png",
		"/images/weekly_review/Frame 5.png",
	},
}

var fallbackImageURLs = map[domain.LetterType]string{
	domain.LetterGoalCreated:   "/images/goal_created/Frame 19.png",
	domain.LetterDailyFeedback: "/images/daily_feedback/Frame 2.png",
	domain.LetterWeeklyReview:  "/images/weekly_review/Frame 1.png",
}

// FallbackImageURL returns the per-type placeholder cover.
func FallbackImageURL(letterType domain.LetterType) string {
	if url, ok := fallbackImageURLs[letterType]; ok {
		return url
	}
	return fallbackImageURLs[domain.LetterGoalCreated]
}

// PoolImageSource serves covers from the curated pools, avoiding repeats
// per (user, type) until a pool is exhausted, then resetting the used list.
type PoolImageSource struct {
	mu   sync.Mutex
	used map[string]map[string]bool // userID|type -> url -> used
	rand *rand.Rand
}

// NewPoolImageSource builds a pool source seeded from the given source.
// A nil source is allowed and seeds from the global generator.
func NewPoolImageSource(src rand.Source) *PoolImageSource {
	r := rand.New(rand.NewSource(rand.Int63()))
	if src != nil {
		r = rand.New(src)
	}
	return &PoolImageSource{
		used: make(map[string]map[string]bool),
		rand: r,
	}
}

// FrontImage implements ImageSource.
func (p *PoolImageSource) FrontImage(_ context.Context, userID string, letterType domain.LetterType, _ string) string {
	pool := letterImagePools[letterType]
	if len(pool) == 0 {
		return FallbackImageURL(letterType)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := userID + "|" + string(letterType)
	used := p.used[key]
	if used == nil {
		used = make(map[string]bool)
		p.used[key] = used
	}

	available := make([]string, 0, len(pool))
	for _, url := range pool {
		if !used[url] {
			available = append(available, url)
		}
	}
	// Pool exhausted: reset and start over with the full pool.
	if len(available) == 0 {
		clear(used)
		available = append(available, pool...)
	}

	pick := available[p.rand.Intn(len(available))]
	used[pick] = true
	return pick
}

// ImageArchiver copies a provider-hosted image into our own storage.
type ImageArchiver interface {
	Archive(ctx context.Context, userID, srcURL string) (string, error)
}

// AIImageSource asks an image generation service for a cover, archiving
// the result when an archiver is configured. Any failure falls back to the
// per-type placeholder so letter creation is never blocked on a picture.
type AIImageSource struct {
	generator ai.ImageGenerator
	archiver  ImageArchiver
}

// NewAIImageSource wires the generator and an optional archiver.
func NewAIImageSource(generator ai.ImageGenerator, archiver ImageArchiver) *AIImageSource {
	return &AIImageSource{generator: generator, archiver: archiver}
}

// FrontImage implements ImageSource.
func (s *AIImageSource) FrontImage(ctx context.Context, userID string, letterType domain.LetterType, goalTitle string) string {
	url, err := s.generator.GenerateImage(ctx, imagePrompt(letterType, goalTitle))
	if err != nil {
		slog.Warn("image generation failed, using fallback",
			"letter_type", letterType, "err", err)
		return FallbackImageURL(letterType)
	}
	if s.archiver != nil {
		archived, err := s.archiver.Archive(ctx, userID, url)
		if err != nil {
			slog.Warn("image archive failed, keeping provider url", "err", err)
		} else {
			url = archived
		}
	}
	return url
}

func imagePrompt(letterType domain.LetterType, goalTitle string) string {
	switch letterType {
	case domain.LetterGoalCreated:
		return fmt.Sprintf("Create a Pixar-style 3D illustration that represents the beginning of a journey towards %s. The image should be uplifting and hopeful, focusing on objects and environments that symbolize this goal, without any human characters. Use warm, optimistic colors and lighting to create a positive atmosphere.", goalTitle)
	case domain.LetterDailyFeedback:
		return fmt.Sprintf("Create a Pixar-style 3D illustration that represents progress and growth in %s. The image should be encouraging and motivational, focusing on objects and environments that show forward movement or improvement, without any human characters. Use bright, energetic colors to create an inspiring atmosphere.", goalTitle)
	case domain.LetterWeeklyReview:
		return fmt.Sprintf("Create a Pixar-style 3D illustration that celebrates achievements and milestones in %s. The image should be celebratory and uplifting, focusing on objects and environments that symbolize success and growth, without any human characters. Use vibrant, joyful colors to create a triumphant atmosphere.", goalTitle)
	default:
		return fmt.Sprintf("Create a Pixar-style 3D illustration related to %s. The image should be inspiring and positive, focusing on objects and environments that represent this goal, without any human characters. Use warm, encouraging colors to create an uplifting atmosphere.", goalTitle)
	}
}
