package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dropjournal/pkg/domain"
)

const exportFanOut = 4

// ExportResult points at an uploaded journal export.
type ExportResult struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
	EntryCount int       `json:"entryCount"`
}

type exportDocument struct {
	ExportedAt time.Time     `json:"exportedAt"`
	User       domain.User   `json:"user"`
	Entries    []exportEntry `json:"entries"`
}

type exportEntry struct {
	domain.JournalEntry
	Tags         []domain.EntryTagView `json:"tags"`
	Conversation *ConversationDetail   `json:"conversation,omitempty"`
}

// ExportJournal writes all of the user's entries, tags and conversations to
// object storage as one JSON document and returns a time-limited download URL.
func (a *App) ExportJournal(ctx context.Context, user domain.User) (ExportResult, error) {
	if a.exports == nil {
		return ExportResult{}, ErrExportDisabled
	}
	entries, err := a.store.ListEntriesByUser(ctx, user.ID)
	if err != nil {
		return ExportResult{}, fmt.Errorf("list entries: %w", err)
	}

	out := make([]exportEntry, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportFanOut)
	for i, entry := range entries {
		g.Go(func() error {
			item, err := a.exportEntry(gctx, entry)
			if err != nil {
				return err
			}
			out[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	now := a.now().UTC()
	body, err := json.MarshalIndent(exportDocument{ExportedAt: now, User: user, Entries: out}, "", "  ")
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode export: %w", err)
	}
	key := fmt.Sprintf("exports/%s/journal-%s.json", user.ID, now.Format("20060102T150405Z"))
	if err := a.exports.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return ExportResult{}, fmt.Errorf("upload export: %w", err)
	}
	url, err := a.exports.PresignGet(ctx, key, a.exportURLTTL)
	if err != nil {
		return ExportResult{}, fmt.Errorf("presign export: %w", err)
	}
	return ExportResult{Key: key, URL: url, ExpiresAt: now.Add(a.exportURLTTL), EntryCount: len(entries)}, nil
}

func (a *App) exportEntry(ctx context.Context, entry domain.JournalEntry) (exportEntry, error) {
	detail, err := a.withTags(ctx, entry)
	if err != nil {
		return exportEntry{}, err
	}
	item := exportEntry{JournalEntry: entry, Tags: detail.Tags}
	conv, ok, err := a.store.GetConversationByEntry(ctx, entry.ID)
	if err != nil {
		return exportEntry{}, fmt.Errorf("fetch conversation: %w", err)
	}
	if ok {
		msgs, err := a.store.ListMessages(ctx, conv.ID)
		if err != nil {
			return exportEntry{}, fmt.Errorf("list messages: %w", err)
		}
		item.Conversation = &ConversationDetail{Conversation: conv, Messages: msgs}
	}
	return item, nil
}
