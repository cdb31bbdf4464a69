// Package app implements the Goal Journal core: goals, journal entries,
// collects, and the letter generation pipeline around them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"goaljournal/internal/util"
	"goaljournal/pkg/ai"
	"goaljournal/pkg/auth"
	"goaljournal/pkg/cooldown"
	"goaljournal/pkg/domain"
	"goaljournal/pkg/events"
	"goaljournal/pkg/queue"
	"goaljournal/pkg/store"
)

// Every journalTriggerModulus-th journal entry for a goal fires an
// automatic weekly review letter.
const journalTriggerModulus = 4

// ReviewScheduler hands automatic generations to a job queue so they run
// off the journal-creation request path.
type ReviewScheduler interface {
	Enqueue(ctx context.Context, goalID, userID string, letterType domain.LetterType) (queue.Job, error)
}

// EventPublisher emits domain events; implementations must be best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Sessions    store.SessionStore
	TextGen     ai.TextGenerator
	Images      ImageSource
	Cooldown    *cooldown.Tracker
	Status      StatusObserver
	Scheduler   ReviewScheduler
	Events      EventPublisher
	Now         func() time.Time
}

// App is the core application service wiring storage, AI, and the
// generation cooldown together.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	textGen   ai.TextGenerator
	images    ImageSource
	cooldown  *cooldown.Tracker
	status    StatusObserver
	scheduler ReviewScheduler
	events    EventPublisher
	now       func() time.Time

	genMu     sync.Mutex
	goalLocks map[string]*sync.Mutex
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.TextGen == nil {
		return nil, fmt.Errorf("text generator required")
	}

	tracker := cfg.Cooldown
	if tracker == nil {
		var err error
		tracker, err = cooldown.NewTracker(nil)
		if err != nil {
			return nil, err
		}
	}
	images := cfg.Images
	if images == nil {
		images = NewPoolImageSource(nil)
	}
	status := cfg.Status
	if status == nil {
		status = NewStatusRecorder()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &App{
		store:     dataStore,
		sessions:  cfg.Sessions,
		textGen:   cfg.TextGen,
		images:    images,
		cooldown:  tracker,
		status:    status,
		scheduler: cfg.Scheduler,
		events:    cfg.Events,
		now:       now,
		goalLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Store exposes the underlying store for the HTTP layer.
func (a *App) Store() store.Store { return a.store }

// --- auth ---

// Register creates a user and opens a session.
func (a *App) Register(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("email and password required")
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", err
	} else if exists {
		return domain.User{}, "", ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and opens a session.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, exists, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", err
	}
	if !exists || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Logout invalidates a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserByToken resolves a bearer token to a user.
func (a *App) UserByToken(token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return a.store.GetUserByID(userID)
}

// --- goals ---

// CreateGoal saves a new goal for the user.
func (a *App) CreateGoal(userID, title, image string) (domain.Goal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Goal{}, fmt.Errorf("goal title required")
	}
	goal := domain.Goal{
		ID:        util.NewID(),
		Title:     title,
		Image:     image,
		UserID:    userID,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.SaveGoal(goal); err != nil {
		return domain.Goal{}, err
	}
	return goal, nil
}

// GetGoal returns a goal owned by the user.
func (a *App) GetGoal(userID, goalID string) (domain.Goal, error) {
	goal, ok, err := a.store.GetGoal(goalID)
	if err != nil {
		return domain.Goal{}, err
	}
	if !ok || goal.UserID != userID {
		return domain.Goal{}, ErrGoalNotFound
	}
	return goal, nil
}

// ListGoals returns the user's goals.
func (a *App) ListGoals(userID string) ([]domain.Goal, error) {
	return a.store.ListGoalsByUser(userID)
}

// DeleteGoal removes a goal; journals, collects, letters, and scheduler
// rows cascade in the store, and the cooldown window is dropped.
func (a *App) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if _, err := a.GetGoal(userID, goalID); err != nil {
		return err
	}
	if err := a.store.DeleteGoal(goalID); err != nil {
		return err
	}
	a.cooldown.Forget(goalID)
	if a.events != nil {
		a.events.Publish(ctx, events.RoutingKeyGoalDeleted, events.GoalDeleted{
			GoalID:    goalID,
			UserID:    userID,
			DeletedAt: a.now().UTC(),
		})
	}
	return nil
}

// --- journal entries ---

// CreateJournalEntry saves an entry, then applies the journal-count rule:
// every 4th entry for the goal schedules an automatic weekly review. The
// trigger is fire-and-forget; its failure never fails entry creation.
func (a *App) CreateJournalEntry(ctx context.Context, userID string, entry domain.JournalEntry) (domain.JournalEntry, error) {
	if strings.TrimSpace(entry.Content) == "" {
		return domain.JournalEntry{}, fmt.Errorf("journal content required")
	}
	if _, err := a.GetGoal(userID, entry.GoalID); err != nil {
		return domain.JournalEntry{}, err
	}
	entry.ID = util.NewID()
	entry.UserID = userID
	entry.CreatedAt = a.now().UTC()
	if err := a.store.SaveJournalEntry(entry); err != nil {
		return domain.JournalEntry{}, err
	}
	a.maybeScheduleReview(ctx, entry.GoalID, userID)
	return entry, nil
}

func (a *App) maybeScheduleReview(ctx context.Context, goalID, userID string) {
	count, err := a.store.CountJournalEntries(goalID, userID)
	if err != nil {
		slog.Warn("journal count failed, skipping review trigger",
			"goal_id", goalID, "err", err)
		return
	}
	if count == 0 || count%journalTriggerModulus != 0 {
		return
	}
	if a.scheduler != nil {
		if _, err := a.scheduler.Enqueue(ctx, goalID, userID, domain.LetterWeeklyReview); err != nil {
			slog.Warn("enqueue weekly review failed", "goal_id", goalID, "err", err)
		}
		return
	}
	// No queue configured: run in-process, detached from the request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := a.GenerateLetter(ctx, userID, GenerateLetterOptions{
			GoalID: goalID,
			Type:   domain.LetterWeeklyReview,
		}); err != nil {
			slog.Warn("automatic weekly review failed", "goal_id", goalID, "err", err)
		}
	}()
}

// ListJournalEntries returns a goal's entries, newest first.
func (a *App) ListJournalEntries(userID, goalID string) ([]domain.JournalEntry, error) {
	if _, err := a.GetGoal(userID, goalID); err != nil {
		return nil, err
	}
	return a.store.ListJournalEntries(goalID)
}

// DeleteJournalEntry removes an entry owned by the user.
func (a *App) DeleteJournalEntry(userID, entryID string) error {
	entry, ok, err := a.store.GetJournalEntry(entryID)
	if err != nil {
		return err
	}
	if !ok || entry.UserID != userID {
		return ErrJournalNotFound
	}
	return a.store.DeleteJournalEntry(entryID)
}

// --- collects ---

// CreateCollect saves an inspirational item under a goal.
func (a *App) CreateCollect(userID string, collect domain.Collect) (domain.Collect, error) {
	switch collect.Type {
	case domain.CollectText, domain.CollectImage, domain.CollectVideo, domain.CollectLink:
	default:
		return domain.Collect{}, fmt.Errorf("unknown collect type: %s", collect.Type)
	}
	if strings.TrimSpace(collect.Content) == "" {
		return domain.Collect{}, fmt.Errorf("collect content required")
	}
	if _, err := a.GetGoal(userID, collect.GoalID); err != nil {
		return domain.Collect{}, err
	}
	collect.ID = util.NewID()
	collect.UserID = userID
	collect.CreatedAt = a.now().UTC()
	if err := a.store.SaveCollect(collect); err != nil {
		return domain.Collect{}, err
	}
	return collect, nil
}

// ListCollects returns a goal's collects, newest first.
func (a *App) ListCollects(userID, goalID string) ([]domain.Collect, error) {
	if _, err := a.GetGoal(userID, goalID); err != nil {
		return nil, err
	}
	return a.store.ListCollectsByGoal(goalID)
}

// DeleteCollect removes a collect owned by the user.
func (a *App) DeleteCollect(userID, collectID string) error {
	collect, ok, err := a.store.GetCollect(collectID)
	if err != nil {
		return err
	}
	if !ok || collect.UserID != userID {
		return ErrCollectNotFound
	}
	return a.store.DeleteCollect(collectID)
}

func (a *App) goalLock(goalID string) *sync.Mutex {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	lock, ok := a.goalLocks[goalID]
	if !ok {
		lock = &sync.Mutex{}
		a.goalLocks[goalID] = lock
	}
	return lock
}
