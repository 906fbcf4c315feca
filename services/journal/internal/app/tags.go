package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
)

const maxTagNameLength = 64

// TagEntries is a tag with the requesting user's entries carrying it.
type TagEntries struct {
	Tag     domain.Tag            `json:"tag"`
	Entries []domain.JournalEntry `json:"entries"`
}

// AnalyzeEntryTags asks the coach for tags describing an entry and links
// them with source "ai". Links the user created are left untouched.
func (a *App) AnalyzeEntryTags(ctx context.Context, entryID string) error {
	entry, ok, err := a.store.GetEntry(ctx, entryID)
	if err != nil {
		return fmt.Errorf("fetch entry: %w", err)
	}
	if !ok {
		slog.Info("tag analysis target gone", "entry_id", entryID)
		return nil
	}

	aiCtx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	suggestions, err := a.coach.AnalyzeTags(aiCtx, entry.InitialResponse)
	cancel()
	if err != nil {
		return fmt.Errorf("analyze tags: %w", err)
	}

	applied := 0
	for _, s := range suggestions {
		name := domain.NormalizeTagName(s.Name)
		if name == "" {
			continue
		}
		tag, err := a.store.EnsureTag(ctx, domain.Tag{Name: name})
		if err != nil {
			return fmt.Errorf("ensure tag %q: %w", name, err)
		}
		score := s.ConfidenceScore
		now := a.now().UTC()
		wrote, err := a.store.UpsertEntryTag(ctx, domain.EntryTag{
			JournalEntryID:  entry.ID,
			TagID:           tag.ID,
			Source:          domain.TagSourceAI,
			ConfidenceScore: &score,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
		if wrote {
			applied++
		}
	}
	slog.Info("entry tags analyzed", "entry_id", entry.ID, "suggested", len(suggestions), "applied", applied)
	return nil
}

// AddEntryTag tags one of the user's entries. A user link replaces an AI one.
func (a *App) AddEntryTag(ctx context.Context, user domain.User, entryID, name string) (EntryDetail, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return EntryDetail{}, err
	}
	name = domain.NormalizeTagName(name)
	if name == "" {
		return EntryDetail{}, invalid("tag name is required")
	}
	if len(name) > maxTagNameLength {
		return EntryDetail{}, invalid("tag name must be at most %d characters", maxTagNameLength)
	}
	tag, err := a.store.EnsureTag(ctx, domain.Tag{ID: util.NewID(), Name: name})
	if err != nil {
		return EntryDetail{}, fmt.Errorf("ensure tag: %w", err)
	}
	now := a.now().UTC()
	if _, err := a.store.UpsertEntryTag(ctx, domain.EntryTag{
		JournalEntryID: entry.ID,
		TagID:          tag.ID,
		Source:         domain.TagSourceUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return EntryDetail{}, fmt.Errorf("link tag: %w", err)
	}
	return a.withTags(ctx, entry)
}

// RemoveEntryTag unlinks a tag from one of the user's entries.
func (a *App) RemoveEntryTag(ctx context.Context, user domain.User, entryID, tagID string) error {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return err
	}
	removed, err := a.store.RemoveEntryTag(ctx, entry.ID, strings.TrimSpace(tagID))
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if !removed {
		return ErrTagNotFound
	}
	return nil
}

// ListEntryTags returns the tags on one of the user's entries.
func (a *App) ListEntryTags(ctx context.Context, user domain.User, entryID string) ([]domain.EntryTagView, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return nil, err
	}
	detail, err := a.withTags(ctx, entry)
	if err != nil {
		return nil, err
	}
	return detail.Tags, nil
}

// ListTags returns every tag.
func (a *App) ListTags(ctx context.Context) ([]domain.Tag, error) {
	tags, err := a.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// EntriesByTag returns the user's entries carrying a tag.
func (a *App) EntriesByTag(ctx context.Context, user domain.User, tagID string) (TagEntries, error) {
	tagID = strings.TrimSpace(tagID)
	tag, ok, err := a.store.GetTag(ctx, tagID)
	if err != nil {
		return TagEntries{}, fmt.Errorf("fetch tag: %w", err)
	}
	if !ok {
		return TagEntries{}, ErrTagNotFound
	}
	entries, err := a.store.ListEntriesByTag(ctx, tag.ID, user.ID)
	if err != nil {
		return TagEntries{}, fmt.Errorf("list entries by tag: %w", err)
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	return TagEntries{Tag: tag, Entries: entries}, nil
}
