package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
	"dropjournal/pkg/queue"
	"dropjournal/pkg/store"
)

const maxEntryLength = 20000

// CreateEntryInput is the payload of CreateEntry. EntryDate defaults to today.
type CreateEntryInput struct {
	PromptID        *string
	EntryDate       string
	InitialResponse string
	MoodScore       *int
}

// EntryPatch holds optional entry changes; nil fields are left alone.
type EntryPatch struct {
	InitialResponse *string
	MoodScore       *int
	IsFavorite      *bool
}

// EntryDetail is an entry with its tags.
type EntryDetail struct {
	domain.JournalEntry
	Tags []domain.EntryTagView `json:"tags"`
}

// CreateEntry stores the user's entry for a date and schedules tag analysis.
func (a *App) CreateEntry(ctx context.Context, user domain.User, in CreateEntryInput) (domain.JournalEntry, error) {
	text := strings.TrimSpace(in.InitialResponse)
	if text == "" {
		return domain.JournalEntry{}, invalid("initialResponse is required")
	}
	if len(text) > maxEntryLength {
		return domain.JournalEntry{}, invalid("initialResponse must be at most %d characters", maxEntryLength)
	}
	if err := validateMood(in.MoodScore); err != nil {
		return domain.JournalEntry{}, err
	}
	date := strings.TrimSpace(in.EntryDate)
	if date == "" {
		date = a.Today()
	} else if _, err := domain.ParseDate(date); err != nil {
		return domain.JournalEntry{}, invalid("%v", err)
	}
	var promptID *string
	if in.PromptID != nil && strings.TrimSpace(*in.PromptID) != "" {
		id := strings.TrimSpace(*in.PromptID)
		if _, ok, err := a.store.GetPrompt(ctx, id); err != nil {
			return domain.JournalEntry{}, fmt.Errorf("fetch prompt: %w", err)
		} else if !ok {
			return domain.JournalEntry{}, ErrPromptNotFound
		}
		promptID = &id
	}

	if _, ok, err := a.store.GetEntryByUserAndDate(ctx, user.ID, date); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("check existing entry: %w", err)
	} else if ok {
		return domain.JournalEntry{}, ErrEntryExists
	}

	now := a.now().UTC()
	entry := domain.JournalEntry{
		ID:              util.NewID(),
		UserID:          user.ID,
		PromptID:        promptID,
		EntryDate:       date,
		InitialResponse: text,
		MoodScore:       in.MoodScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.store.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.JournalEntry{}, ErrEntryExists
		}
		return domain.JournalEntry{}, fmt.Errorf("create entry: %w", err)
	}
	a.dispatch(ctx, queue.KindEntryTags, entry.ID)
	return entry, nil
}

// UpdateEntry applies a patch to one of the user's entries. Changing the text
// schedules tag analysis again.
func (a *App) UpdateEntry(ctx context.Context, user domain.User, entryID string, patch EntryPatch) (domain.JournalEntry, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if patch.InitialResponse == nil && patch.MoodScore == nil && patch.IsFavorite == nil {
		return domain.JournalEntry{}, invalid("nothing to update")
	}
	textChanged := false
	if patch.InitialResponse != nil {
		text := strings.TrimSpace(*patch.InitialResponse)
		if text == "" {
			return domain.JournalEntry{}, invalid("initialResponse must not be empty")
		}
		if len(text) > maxEntryLength {
			return domain.JournalEntry{}, invalid("initialResponse must be at most %d characters", maxEntryLength)
		}
		textChanged = text != entry.InitialResponse
		entry.InitialResponse = text
	}
	if patch.MoodScore != nil {
		if err := validateMood(patch.MoodScore); err != nil {
			return domain.JournalEntry{}, err
		}
		mood := *patch.MoodScore
		entry.MoodScore = &mood
	}
	if patch.IsFavorite != nil {
		entry.IsFavorite = *patch.IsFavorite
	}
	entry.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.JournalEntry{}, ErrEntryNotFound
		}
		return domain.JournalEntry{}, fmt.Errorf("update entry: %w", err)
	}
	if textChanged {
		a.dispatch(ctx, queue.KindEntryTags, entry.ID)
	}
	return entry, nil
}

// GetEntry returns one of the user's entries with its tags.
func (a *App) GetEntry(ctx context.Context, user domain.User, entryID string) (EntryDetail, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return EntryDetail{}, err
	}
	return a.withTags(ctx, entry)
}

// GetEntryByDate returns the user's entry for a calendar date.
func (a *App) GetEntryByDate(ctx context.Context, user domain.User, date string) (EntryDetail, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return EntryDetail{}, invalid("%v", err)
	}
	entry, ok, err := a.store.GetEntryByUserAndDate(ctx, user.ID, strings.TrimSpace(date))
	if err != nil {
		return EntryDetail{}, fmt.Errorf("fetch entry: %w", err)
	}
	if !ok {
		return EntryDetail{}, ErrEntryNotFound
	}
	return a.withTags(ctx, entry)
}

// ListEntries returns the user's entries, newest date first.
func (a *App) ListEntries(ctx context.Context, user domain.User) ([]domain.JournalEntry, error) {
	entries, err := a.store.ListEntriesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (a *App) withTags(ctx context.Context, entry domain.JournalEntry) (EntryDetail, error) {
	tags, err := a.store.ListEntryTags(ctx, entry.ID)
	if err != nil {
		return EntryDetail{}, fmt.Errorf("list entry tags: %w", err)
	}
	if tags == nil {
		tags = []domain.EntryTagView{}
	}
	return EntryDetail{JournalEntry: entry, Tags: tags}, nil
}

// ownedEntry loads an entry and checks that user owns it.
func (a *App) ownedEntry(ctx context.Context, user domain.User, entryID string) (domain.JournalEntry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return domain.JournalEntry{}, invalid("entry id is required")
	}
	entry, ok, err := a.store.GetEntry(ctx, entryID)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("fetch entry: %w", err)
	}
	if !ok {
		return domain.JournalEntry{}, ErrEntryNotFound
	}
	if entry.UserID != user.ID {
		slog.Warn("entry ownership denied", "entry_id", entryID, "user_id", user.ID)
		return domain.JournalEntry{}, ErrForbidden
	}
	return entry, nil
}

func validateMood(mood *int) error {
	if mood == nil {
		return nil
	}
	if *mood < 1 || *mood > 10 {
		return invalid("moodScore must be between 1 and 10")
	}
	return nil
}
