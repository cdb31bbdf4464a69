package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type GoalModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Image     string
	UserID    string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

type JournalEntryModel struct {
	ID           string `gorm:"primaryKey"`
	Title        string `gorm:"not null"`
	Content      string `gorm:"type:text;not null"`
	MediaURLs    datatypes.JSON `gorm:"type:jsonb"`
	TextCollects datatypes.JSON `gorm:"type:jsonb"`
	GoalID       string `gorm:"not null;index"`
	UserID       string `gorm:"not null;index"`
	LetterID     string
	CollectID    string
	CreatedAt    time.Time `gorm:"not null;index"`
}

type CollectModel struct {
	ID           string `gorm:"primaryKey"`
	Type         string `gorm:"not null"`
	Content      string `gorm:"type:text;not null"`
	Caption      string
	Title        string
	PreviewImage string
	Color        string
	GoalID       string    `gorm:"not null;index"`
	UserID       string    `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

type LetterModel struct {
	ID                 string `gorm:"primaryKey"`
	Type               string `gorm:"not null"`
	Title              string `gorm:"not null"`
	Greeting           string `gorm:"not null"`
	Content            string `gorm:"type:text;not null"`
	ReflectionQuestion string `gorm:"not null"`
	Signature          string `gorm:"not null"`
	FrontImage         string `gorm:"not null"`
	GoalID             string `gorm:"not null;index"`
	UserID             string `gorm:"not null;index"`
	ReadAt             *time.Time
	RelatedJournals    datatypes.JSON `gorm:"type:jsonb"`
	RelatedCollects    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt          time.Time      `gorm:"not null;index"`
}

type ScheduledTaskModel struct {
	GoalID       string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	LastLetterAt time.Time `gorm:"not null"`
	NextLetterAt time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}
