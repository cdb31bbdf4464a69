package domain

import "time"

type LetterType string

const (
	LetterGoalCreated   LetterType = "goal_created"
	LetterDailyFeedback LetterType = "daily_feedback"
	LetterWeeklyReview  LetterType = "weekly_review"
)

// ValidLetterType reports whether t is one of the known trigger types.
func ValidLetterType(t LetterType) bool {
	switch t {
	case LetterGoalCreated, LetterDailyFeedback, LetterWeeklyReview:
		return true
	}
	return false
}

type CollectType string

const (
	CollectText  CollectType = "text"
	CollectImage CollectType = "image"
	CollectVideo CollectType = "video"
	CollectLink  CollectType = "link"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Goal struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image,omitempty"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TextCollect is an inline text/link snippet embedded in a journal entry.
type TextCollect struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	Title        string `json:"title,omitempty"`
	PreviewImage string `json:"previewImage,omitempty"`
}

type JournalEntry struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	MediaURLs    []string      `json:"mediaUrls"`
	TextCollects []TextCollect `json:"textCollects"`
	GoalID       string        `json:"goalId"`
	UserID       string        `json:"userId"`
	LetterID     string        `json:"letterId,omitempty"`
	CollectID    string        `json:"collectId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type Collect struct {
	ID           string      `json:"id"`
	Type         CollectType `json:"type"`
	Content      string      `json:"content"`
	Caption      string      `json:"caption,omitempty"`
	Title        string      `json:"title,omitempty"`
	PreviewImage string      `json:"previewImage,omitempty"`
	Color        string      `json:"color,omitempty"`
	GoalID       string      `json:"goalId"`
	UserID       string      `json:"userId"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// JournalRef is the snapshot of a journal entry embedded in a letter at
// generation time.
type JournalRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectRef is the snapshot of a collect embedded in a letter at
// generation time.
type CollectRef struct {
	ID        string      `json:"id"`
	Type      CollectType `json:"type"`
	Content   string      `json:"content"`
	Caption   string      `json:"caption,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Letter is immutable once created except for ReadAt, set on first view.
type Letter struct {
	ID                 string       `json:"id"`
	Type               LetterType   `json:"type"`
	Title              string       `json:"title"`
	Greeting           string       `json:"greeting"`
	Content            string       `json:"content"`
	ReflectionQuestion string       `json:"reflectionQuestion"`
	Signature          string       `json:"signature"`
	FrontImage         string       `json:"frontImage"`
	GoalID             string       `json:"goalId"`
	UserID             string       `json:"userId"`
	ReadAt             *time.Time   `json:"readAt,omitempty"`
	RelatedJournals    []JournalRef `json:"relatedJournals,omitempty"`
	RelatedCollects    []CollectRef `json:"relatedCollects,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// ScheduledTask is a best-effort bookkeeping row for external schedulers,
// keyed one-per-goal.
type ScheduledTask struct {
	GoalID       string    `json:"goalId"`
	UserID       string    `json:"userId"`
	LastLetterAt time.Time `json:"lastLetterAt"`
	NextLetterAt time.Time `json:"nextLetterAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
