package store

import (
	"context"
	"errors"

	"dropjournal/pkg/domain"
)

var (
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by writes whose target row does not exist.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence for users, prompts, journal entries,
// conversations, messages, and tags.
// Getters report absence with ok=false rather than an error.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	UpdateUser(ctx context.Context, u domain.User) error

	// prompts
	SavePrompt(ctx context.Context, p domain.Prompt) error
	GetPrompt(ctx context.Context, id string) (domain.Prompt, bool, error)
	GetPromptForDate(ctx context.Context, date string) (domain.Prompt, bool, error)
	// LatestActivePrompt returns the active prompt with the highest
	// active date that is not after onOrBefore.
	LatestActivePrompt(ctx context.Context, onOrBefore string) (domain.Prompt, bool, error)
	ListPrompts(ctx context.Context) ([]domain.Prompt, error)

	// journal entries
	CreateEntry(ctx context.Context, e domain.JournalEntry) error
	GetEntry(ctx context.Context, id string) (domain.JournalEntry, bool, error)
	GetEntryByUserAndDate(ctx context.Context, userID, date string) (domain.JournalEntry, bool, error)
	ListEntriesByUser(ctx context.Context, userID string) ([]domain.JournalEntry, error)
	UpdateEntry(ctx context.Context, e domain.JournalEntry) error

	// conversations
	// CreateConversation inserts the conversation and its opening messages
	// atomically; messages are numbered from 1 in slice order.
	CreateConversation(ctx context.Context, c domain.Conversation, opening []domain.Message) ([]domain.Message, error)
	GetConversationByEntry(ctx context.Context, entryID string) (domain.Conversation, bool, error)
	SetConversationSummary(ctx context.Context, conversationID, summary string) error

	// messages
	// AppendMessage assigns the next sequence number for the conversation.
	// Concurrent appends to one conversation are serialized.
	AppendMessage(ctx context.Context, conversationID string, role domain.MessageRole, content string) (domain.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// tags
	// EnsureTag returns the tag with t.Name, creating it from t when absent.
	EnsureTag(ctx context.Context, t domain.Tag) (domain.Tag, error)
	GetTag(ctx context.Context, id string) (domain.Tag, bool, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	// UpsertEntryTag writes the link unless an existing user-sourced link
	// would be replaced by a non-user source. It reports whether it wrote.
	UpsertEntryTag(ctx context.Context, et domain.EntryTag) (bool, error)
	ListEntryTags(ctx context.Context, entryID string) ([]domain.EntryTagView, error)
	RemoveEntryTag(ctx context.Context, entryID, tagID string) (bool, error)
	ListEntriesByTag(ctx context.Context, tagID, userID string) ([]domain.JournalEntry, error)
}
