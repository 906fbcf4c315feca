package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for entry and prompt dates.
const DateLayout = "2006-01-02"

type Theme string

const (
	ThemeCozy     Theme = "cozy"
	ThemeMidnight Theme = "midnight"
	ThemeSunset   Theme = "sunset"
)

// Valid reports whether the theme is one the client can render.
func (t Theme) Valid() bool {
	switch t {
	case ThemeCozy, ThemeMidnight, ThemeSunset:
		return true
	}
	return false
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type TagSource string

const (
	TagSourceUser   TagSource = "user"
	TagSourceSystem TagSource = "system"
	TagSourceAI     TagSource = "ai"
)

// Valid reports whether the source is a known tag origin.
func (s TagSource) Valid() bool {
	switch s {
	case TagSourceUser, TagSourceSystem, TagSourceAI:
		return true
	}
	return false
}

type User struct {
	ID                      string          `json:"id"`
	Email                   string          `json:"email"`
	PasswordHash            string          `json:"-"`
	PreferredTheme          Theme           `json:"preferredTheme"`
	NotificationPreferences map[string]bool `json:"notificationPreferences"`
	LastLoginAt             *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

type Prompt struct {
	ID         string    `json:"id"`
	PromptText string    `json:"promptText"`
	Category   string    `json:"category,omitempty"`
	ActiveDate string    `json:"activeDate"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

type JournalEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	PromptID        *string   `json:"promptId,omitempty"`
	EntryDate       string    `json:"entryDate"`
	InitialResponse string    `json:"initialResponse"`
	MoodScore       *int      `json:"moodScore,omitempty"`
	IsFavorite      bool      `json:"isFavorite"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Conversation struct {
	ID             string    `json:"id"`
	JournalEntryID string    `json:"journalEntryId"`
	Summary        *string   `json:"summary,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	SequenceOrder  int         `json:"sequenceOrder"`
	CreatedAt      time.Time   `json:"createdAt"`
}

type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
}

type EntryTag struct {
	JournalEntryID  string    `json:"journalEntryId"`
	TagID           string    `json:"tagId"`
	Source          TagSource `json:"source"`
	ConfidenceScore *float64  `json:"confidenceScore,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// EntryTagView is an entry-tag link joined with its tag.
type EntryTagView struct {
	Tag
	Source          TagSource `json:"source"`
	ConfidenceScore *float64  `json:"confidenceScore,omitempty"`
}

// NormalizeTagName returns the canonical lowercase form of a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
