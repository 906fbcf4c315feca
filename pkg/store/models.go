package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                      string `gorm:"primaryKey;size:32"`
	Email                   string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash            string `gorm:"size:255;not null"`
	PreferredTheme          string `gorm:"size:50;not null"`
	NotificationPreferences datatypes.JSON
	LastLoginAt             *time.Time
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type PromptModel struct {
	ID         string    `gorm:"primaryKey;size:32"`
	PromptText string    `gorm:"type:text;not null"`
	Category   string    `gorm:"size:100"`
	ActiveDate time.Time `gorm:"type:date;not null;index"`
	IsActive   bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (PromptModel) TableName() string { return "prompts" }

type JournalEntryModel struct {
	ID              string    `gorm:"primaryKey;size:32"`
	UserID          string    `gorm:"size:32;not null;uniqueIndex:idx_journal_entries_user_date,priority:1"`
	PromptID        *string   `gorm:"size:32;index"`
	EntryDate       time.Time `gorm:"type:date;not null;uniqueIndex:idx_journal_entries_user_date,priority:2"`
	InitialResponse string    `gorm:"type:text;not null"`
	MoodScore       *int
	IsFavorite      bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (JournalEntryModel) TableName() string { return "journal_entries" }

type ConversationModel struct {
	ID             string    `gorm:"primaryKey;size:32"`
	JournalEntryID string    `gorm:"size:32;not null;uniqueIndex"`
	Summary        *string   `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (ConversationModel) TableName() string { return "conversations" }

type MessageModel struct {
	ID             string    `gorm:"primaryKey;size:32"`
	ConversationID string    `gorm:"size:32;not null;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Role           string    `gorm:"column:sender_type;size:10;not null"`
	Content        string    `gorm:"type:text;not null"`
	SequenceOrder  int       `gorm:"not null;uniqueIndex:idx_messages_conversation_seq,priority:2"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (MessageModel) TableName() string { return "messages" }

type TagModel struct {
	ID          string    `gorm:"primaryKey;size:32"`
	Name        string    `gorm:"size:100;not null;uniqueIndex"`
	Description string    `gorm:"type:text"`
	IsSystem    bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (TagModel) TableName() string { return "tags" }

type EntryTagModel struct {
	JournalEntryID  string    `gorm:"primaryKey;size:32"`
	TagID           string    `gorm:"primaryKey;size:32;index"`
	Source          string    `gorm:"size:20;not null"`
	ConfidenceScore *float64
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (EntryTagModel) TableName() string { return "entry_tags" }

// entryTagRow is the join of entry_tags and tags used for listings.
type entryTagRow struct {
	TagModel
	Source          string
	ConfidenceScore *float64
}
