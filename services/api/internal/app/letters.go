package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"goaljournal/internal/util"
	"goaljournal/pkg/domain"
	"goaljournal/pkg/events"
)

const recentFetchLimit = 10

// GenerateLetterOptions names the trigger for one generation.
type GenerateLetterOptions struct {
	GoalID   string
	Type     domain.LetterType
	IsManual bool
}

// letterContent is the shape the AI must return.
type letterContent struct {
	Title              string `json:"title"`
	Greeting           string `json:"greeting"`
	Content            string `json:"content"`
	ReflectionQuestion string `json:"reflection_question"`
	Signature          string `json:"signature"`
}

// GenerateLetter runs the full pipeline: cooldown gate, goal lookup,
// recent journal/collect fetch, AI text, cover image, persistence. The
// cooldown advances only after the letter row is saved; any earlier
// failure leaves the goal immediately eligible for a retry.
func (a *App) GenerateLetter(ctx context.Context, userID string, opts GenerateLetterOptions) (domain.Letter, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Letter{}, ErrAuthRequired
	}
	if !domain.ValidLetterType(opts.Type) {
		return domain.Letter{}, fmt.Errorf("unknown letter type: %s", opts.Type)
	}

	// Serialize generations per goal so two concurrent calls cannot both
	// pass the cooldown check before either persists.
	lock := a.goalLock(opts.GoalID)
	lock.Lock()
	defer lock.Unlock()

	startTime := a.now().UTC()
	status := LetterStatus{
		Status:    "generating",
		Progress:  0,
		Type:      opts.Type,
		StartTime: startTime,
	}

	letter, err := a.generateLetter(ctx, userID, opts, &status)
	if err != nil {
		endTime := a.now().UTC()
		errStatus := LetterStatus{
			Status:    "error",
			Progress:  0,
			Type:      opts.Type,
			Error:     err.Error(),
			StartTime: startTime,
			EndTime:   &endTime,
		}
		a.status.UpdateStatus(errStatus)
		a.status.AddToHistory(errStatus)
		return domain.Letter{}, err
	}

	endTime := a.now().UTC()
	status.Status = "success"
	status.Progress = 100
	status.EndTime = &endTime
	a.status.UpdateStatus(status)
	a.status.AddToHistory(status)
	return letter, nil
}

func (a *App) generateLetter(ctx context.Context, userID string, opts GenerateLetterOptions, status *LetterStatus) (domain.Letter, error) {
	if remaining := a.cooldown.TimeUntilNext(opts.GoalID); remaining > 0 {
		return domain.Letter{}, ErrCooldownActive
	}

	goal, err := a.GetGoal(userID, opts.GoalID)
	if err != nil {
		return domain.Letter{}, err
	}

	// The two reads are independent; first failure wins.
	var journals []domain.JournalEntry
	var collects []domain.Collect
	var g errgroup.Group
	g.Go(func() error {
		var err error
		journals, err = a.store.ListRecentJournalEntries(opts.GoalID, recentFetchLimit)
		return err
	})
	g.Go(func() error {
		var err error
		collects, err = a.store.ListRecentCollects(opts.GoalID, recentFetchLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Letter{}, fmt.Errorf("fetch recent records: %w", err)
	}

	status.Metadata = &StatusMetadata{
		GoalID:       opts.GoalID,
		GoalTitle:    goal.Title,
		JournalCount: len(journals),
		CollectCount: len(collects),
	}
	a.status.UpdateStatus(*status)

	status.Progress = 30
	a.status.UpdateStatus(*status)

	systemPrompt, userPrompt := letterPrompts(opts.Type, goal.Title, journals, collects)
	raw, err := a.textGen.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return domain.Letter{}, fmt.Errorf("generate letter text: %w", err)
	}
	content, err := parseLetterContent(raw, opts.Type)
	if err != nil {
		return domain.Letter{}, err
	}

	// The first letter of a goal carries fixed wording regardless of what
	// the model drafted.
	if opts.Type == domain.LetterGoalCreated {
		content.Title = goalCreatedTitle
		content.Signature = goalCreatedSignature
	}

	status.Progress = 50
	a.status.UpdateStatus(*status)
	frontImage := a.images.FrontImage(ctx, userID, opts.Type, goal.Title)

	status.Progress = 80
	a.status.UpdateStatus(*status)

	now := a.now().UTC()
	letter := domain.Letter{
		ID:                 util.NewID(),
		Type:               opts.Type,
		Title:              content.Title,
		Greeting:           content.Greeting,
		Content:            content.Content,
		ReflectionQuestion: content.ReflectionQuestion,
		Signature:          content.Signature,
		FrontImage:         frontImage,
		GoalID:             opts.GoalID,
		UserID:             userID,
		RelatedJournals:    journalRefs(journals),
		RelatedCollects:    collectRefs(collects),
		CreatedAt:          now,
	}
	if err := a.store.SaveLetter(letter); err != nil {
		return domain.Letter{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Only a persisted letter advances the window.
	a.cooldown.Record(opts.GoalID, now)

	if !opts.IsManual {
		task := domain.ScheduledTask{
			GoalID:       opts.GoalID,
			UserID:       userID,
			LastLetterAt: now,
			NextLetterAt: now.Add(24 * time.Hour),
			UpdatedAt:    now,
		}
		if err := a.store.UpsertScheduledTask(task); err != nil {
			slog.Warn("scheduled task upsert failed", "goal_id", opts.GoalID, "err", err)
		}
	}

	if a.events != nil {
		a.events.Publish(ctx, events.RoutingKeyLetterCreated, events.LetterCreated{
			LetterID:   letter.ID,
			GoalID:     letter.GoalID,
			UserID:     letter.UserID,
			LetterType: string(letter.Type),
			IsManual:   opts.IsManual,
			CreatedAt:  now,
		})
	}

	return letter, nil
}

// parseLetterContent decodes the model response, tolerating markdown code
// fences, and enforces the required fields. Title is optional only for
// goal_created, where it is overridden anyway.
func parseLetterContent(raw string, letterType domain.LetterType) (letterContent, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var content letterContent
	if err := json.Unmarshal([]byte(cleaned), &content); err != nil {
		return letterContent{}, fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}
	if content.Greeting == "" || content.Content == "" ||
		content.ReflectionQuestion == "" || content.Signature == "" {
		return letterContent{}, ErrMalformedAIResponse
	}
	if content.Title == "" && letterType != domain.LetterGoalCreated {
		return letterContent{}, ErrMalformedAIResponse
	}
	return content, nil
}

func journalRefs(journals []domain.JournalEntry) []domain.JournalRef {
	refs := make([]domain.JournalRef, 0, len(journals))
	for _, j := range journals {
		refs = append(refs, domain.JournalRef{
			ID:        j.ID,
			Title:     j.Title,
			Content:   j.Content,
			CreatedAt: j.CreatedAt,
		})
	}
	return refs
}

func collectRefs(collects []domain.Collect) []domain.CollectRef {
	refs := make([]domain.CollectRef, 0, len(collects))
	for _, c := range collects {
		refs = append(refs, domain.CollectRef{
			ID:        c.ID,
			Type:      c.Type,
			Content:   c.Content,
			Caption:   c.Caption,
			CreatedAt: c.CreatedAt,
		})
	}
	return refs
}

// TimeUntilNextGeneration reports how long until the goal may generate
// another letter. Zero means eligible now.
func (a *App) TimeUntilNextGeneration(goalID string) time.Duration {
	return a.cooldown.TimeUntilNext(goalID)
}

// ListLetters returns a goal's letters, newest first.
func (a *App) ListLetters(userID, goalID string) ([]domain.Letter, error) {
	if _, err := a.GetGoal(userID, goalID); err != nil {
		return nil, err
	}
	return a.store.ListLettersByGoal(goalID)
}

// GetLetter returns a letter owned by the user.
func (a *App) GetLetter(userID, letterID string) (domain.Letter, error) {
	letter, ok, err := a.store.GetLetter(letterID)
	if err != nil {
		return domain.Letter{}, err
	}
	if !ok || letter.UserID != userID {
		return domain.Letter{}, ErrLetterNotFound
	}
	return letter, nil
}

// MarkLetterAsRead records the first view timestamp; later calls are no-ops.
func (a *App) MarkLetterAsRead(userID, letterID string) error {
	if _, err := a.GetLetter(userID, letterID); err != nil {
		return err
	}
	return a.store.MarkLetterRead(letterID, a.now().UTC())
}
