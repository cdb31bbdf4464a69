package store

import (
	"time"

	"goaljournal/pkg/domain"
)

// Store defines persistence operations for users, goals, journal entries,
// collects, letters, and scheduler bookkeeping.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// goals
	SaveGoal(domain.Goal) error
	GetGoal(id string) (domain.Goal, bool, error)
	ListGoalsByUser(userID string) ([]domain.Goal, error)
	DeleteGoal(id string) error

	// journal entries
	SaveJournalEntry(domain.JournalEntry) error
	GetJournalEntry(id string) (domain.JournalEntry, bool, error)
	ListJournalEntries(goalID string) ([]domain.JournalEntry, error)
	ListRecentJournalEntries(goalID string, limit int) ([]domain.JournalEntry, error)
	CountJournalEntries(goalID, userID string) (int, error)
	DeleteJournalEntry(id string) error

	// collects
	SaveCollect(domain.Collect) error
	GetCollect(id string) (domain.Collect, bool, error)
	ListCollectsByGoal(goalID string) ([]domain.Collect, error)
	ListRecentCollects(goalID string, limit int) ([]domain.Collect, error)
	DeleteCollect(id string) error

	// letters
	SaveLetter(domain.Letter) error
	GetLetter(id string) (domain.Letter, bool, error)
	ListLettersByGoal(goalID string) ([]domain.Letter, error)
	MarkLetterRead(id string, at time.Time) error

	// scheduled tasks
	UpsertScheduledTask(domain.ScheduledTask) error
	GetScheduledTask(goalID string) (domain.ScheduledTask, bool, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
