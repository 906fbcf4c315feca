package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
)

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("entry per user and date is unique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		alice := mustUser(t, s, "alice@example.com")
		bob := mustUser(t, s, "bob@example.com")

		first := newEntry(alice.ID, "2024-01-01", "Had coffee with an old friend, felt grateful.")
		if err := s.CreateEntry(ctx, first); err != nil {
			t.Fatalf("create entry: %v", err)
		}
		dup := newEntry(alice.ID, "2024-01-01", "overwrite attempt")
		if err := s.CreateEntry(ctx, dup); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		got, ok, err := s.GetEntryByUserAndDate(ctx, alice.ID, "2024-01-01")
		if err != nil || !ok {
			t.Fatalf("get entry by date: ok=%v err=%v", ok, err)
		}
		if got.ID != first.ID || got.InitialResponse != first.InitialResponse {
			t.Fatalf("original entry modified: %+v", got)
		}
		if err := s.CreateEntry(ctx, newEntry(bob.ID, "2024-01-01", "bob's day")); err != nil {
			t.Fatalf("other user same date should succeed: %v", err)
		}
	})

	t.Run("entries list newest date first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "list@example.com")
		for _, d := range []string{"2024-01-02", "2024-01-05", "2024-01-01"} {
			if err := s.CreateEntry(ctx, newEntry(u.ID, d, "text "+d)); err != nil {
				t.Fatalf("create %s: %v", d, err)
			}
		}
		entries, err := s.ListEntriesByUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("list entries: %v", err)
		}
		want := []string{"2024-01-05", "2024-01-02", "2024-01-01"}
		if len(entries) != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), len(entries))
		}
		for i, d := range want {
			if entries[i].EntryDate != d {
				t.Fatalf("entry %d date = %s, want %s", i, entries[i].EntryDate, d)
			}
		}
	})

	t.Run("update entry mutable fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "update@example.com")
		e := newEntry(u.ID, "2024-02-01", "before")
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create entry: %v", err)
		}
		mood := 7
		e.MoodScore = &mood
		e.IsFavorite = true
		e.InitialResponse = "after"
		if err := s.UpdateEntry(ctx, e); err != nil {
			t.Fatalf("update entry: %v", err)
		}
		got, _, err := s.GetEntry(ctx, e.ID)
		if err != nil {
			t.Fatalf("get entry: %v", err)
		}
		if got.MoodScore == nil || *got.MoodScore != 7 || !got.IsFavorite || got.InitialResponse != "after" {
			t.Fatalf("update not persisted: %+v", got)
		}
		missing := newEntry(u.ID, "2024-02-02", "x")
		if err := s.UpdateEntry(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("conversation per entry is unique and numbered from one", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "conv@example.com")
		e := newEntry(u.ID, "2024-01-01", "text")
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create entry: %v", err)
		}
		conv := domain.Conversation{ID: util.NewID(), JournalEntryID: e.ID}
		msgs, err := s.CreateConversation(ctx, conv, []domain.Message{
			{Role: domain.RoleUser, Content: "opener"},
			{Role: domain.RoleAssistant, Content: "reply"},
		})
		if err != nil {
			t.Fatalf("create conversation: %v", err)
		}
		if len(msgs) != 2 || msgs[0].SequenceOrder != 1 || msgs[1].SequenceOrder != 2 {
			t.Fatalf("unexpected opening messages: %+v", msgs)
		}
		again := domain.Conversation{ID: util.NewID(), JournalEntryID: e.ID}
		if _, err := s.CreateConversation(ctx, again, []domain.Message{{Role: domain.RoleUser, Content: "x"}}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		n, err := s.CountMessages(ctx, conv.ID)
		if err != nil || n != 2 {
			t.Fatalf("count after rejected create: n=%d err=%v", n, err)
		}
	})

	t.Run("append assigns next sequence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		conv := mustConversation(t, s)
		user, err := s.AppendMessage(ctx, conv.ID, domain.RoleUser, "Tell me more")
		if err != nil {
			t.Fatalf("append user: %v", err)
		}
		reply, err := s.AppendMessage(ctx, conv.ID, domain.RoleAssistant, "Of course")
		if err != nil {
			t.Fatalf("append reply: %v", err)
		}
		if user.SequenceOrder != 3 || reply.SequenceOrder != 4 {
			t.Fatalf("sequence = %d,%d want 3,4", user.SequenceOrder, reply.SequenceOrder)
		}
		msgs, err := s.ListMessages(ctx, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		wantRoles := []domain.MessageRole{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}
		for i, m := range msgs {
			if m.SequenceOrder != i+1 || m.Role != wantRoles[i] {
				t.Fatalf("message %d = seq %d role %s", i, m.SequenceOrder, m.Role)
			}
		}
		if _, err := s.AppendMessage(ctx, "missing", domain.RoleUser, "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
		}
	})

	t.Run("concurrent appends stay contiguous", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		conv := mustConversation(t, s)
		const writers = 12
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.AppendMessage(ctx, conv.ID, domain.RoleUser, fmt.Sprintf("msg %d", i)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("append: %v", err)
		}
		msgs, err := s.ListMessages(ctx, conv.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(msgs) != writers+2 {
			t.Fatalf("expected %d messages, got %d", writers+2, len(msgs))
		}
		for i, m := range msgs {
			if m.SequenceOrder != i+1 {
				t.Fatalf("gap or duplicate at %d: seq %d", i, m.SequenceOrder)
			}
		}
	})

	t.Run("summary update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		conv := mustConversation(t, s)
		if err := s.SetConversationSummary(ctx, conv.ID, "a calm reflection"); err != nil {
			t.Fatalf("set summary: %v", err)
		}
		got, ok, err := s.GetConversationByEntry(ctx, conv.JournalEntryID)
		if err != nil || !ok {
			t.Fatalf("get conversation: ok=%v err=%v", ok, err)
		}
		if got.Summary == nil || *got.Summary != "a calm reflection" {
			t.Fatalf("summary not stored: %v", got.Summary)
		}
		if err := s.SetConversationSummary(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ensure tag is idempotent and case-normalized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, err := s.EnsureTag(ctx, domain.Tag{Name: "Gratitude"})
		if err != nil {
			t.Fatalf("ensure tag: %v", err)
		}
		b, err := s.EnsureTag(ctx, domain.Tag{Name: "  gratitude "})
		if err != nil {
			t.Fatalf("ensure tag again: %v", err)
		}
		if a.ID != b.ID || a.Name != "gratitude" {
			t.Fatalf("expected same normalized tag, got %+v and %+v", a, b)
		}
		tags, err := s.ListTags(ctx)
		if err != nil || len(tags) != 1 {
			t.Fatalf("list tags: %v %v", tags, err)
		}
		if _, err := s.EnsureTag(ctx, domain.Tag{Name: "   "}); err == nil {
			t.Fatal("expected error for blank tag")
		}
	})

	t.Run("user tags win over ai upserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "tags@example.com")
		e := newEntry(u.ID, "2024-01-01", "text")
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create entry: %v", err)
		}
		tag, err := s.EnsureTag(ctx, domain.Tag{Name: "friendship"})
		if err != nil {
			t.Fatalf("ensure tag: %v", err)
		}

		applied, err := s.UpsertEntryTag(ctx, aiTag(e.ID, tag.ID, 0.8))
		if err != nil || !applied {
			t.Fatalf("ai insert: applied=%v err=%v", applied, err)
		}
		applied, err = s.UpsertEntryTag(ctx, aiTag(e.ID, tag.ID, 0.6))
		if err != nil || !applied {
			t.Fatalf("ai update: applied=%v err=%v", applied, err)
		}
		assertEntryTag(t, s, e.ID, tag.ID, domain.TagSourceAI, 0.6)

		applied, err = s.UpsertEntryTag(ctx, domain.EntryTag{JournalEntryID: e.ID, TagID: tag.ID, Source: domain.TagSourceUser})
		if err != nil || !applied {
			t.Fatalf("user override: applied=%v err=%v", applied, err)
		}
		applied, err = s.UpsertEntryTag(ctx, aiTag(e.ID, tag.ID, 0.99))
		if err != nil {
			t.Fatalf("ai after user: %v", err)
		}
		if applied {
			t.Fatal("ai upsert must not replace a user tag")
		}
		views, err := s.ListEntryTags(ctx, e.ID)
		if err != nil || len(views) != 1 {
			t.Fatalf("list entry tags: %v %v", views, err)
		}
		if views[0].Source != domain.TagSourceUser || views[0].ConfidenceScore != nil {
			t.Fatalf("user tag overwritten: %+v", views[0])
		}
	})

	t.Run("entry tags ordered by confidence then name", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "order@example.com")
		e := newEntry(u.ID, "2024-01-01", "text")
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create entry: %v", err)
		}
		for name, score := range map[string]float64{"calm": 0.5, "work": 0.9, "anxiety": 0.5} {
			tag, err := s.EnsureTag(ctx, domain.Tag{Name: name})
			if err != nil {
				t.Fatalf("ensure %s: %v", name, err)
			}
			if _, err := s.UpsertEntryTag(ctx, aiTag(e.ID, tag.ID, score)); err != nil {
				t.Fatalf("upsert %s: %v", name, err)
			}
		}
		views, err := s.ListEntryTags(ctx, e.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"work", "anxiety", "calm"}
		for i, name := range want {
			if views[i].Name != name {
				t.Fatalf("position %d = %s, want %s", i, views[i].Name, name)
			}
		}
		removed, err := s.RemoveEntryTag(ctx, e.ID, views[0].ID)
		if err != nil || !removed {
			t.Fatalf("remove: removed=%v err=%v", removed, err)
		}
		removed, err = s.RemoveEntryTag(ctx, e.ID, views[0].ID)
		if err != nil || removed {
			t.Fatalf("second remove: removed=%v err=%v", removed, err)
		}
	})

	t.Run("entries by tag are scoped to the user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		alice := mustUser(t, s, "a@example.com")
		bob := mustUser(t, s, "b@example.com")
		tag, err := s.EnsureTag(ctx, domain.Tag{Name: "gratitude"})
		if err != nil {
			t.Fatalf("ensure tag: %v", err)
		}
		for _, e := range []domain.JournalEntry{
			newEntry(alice.ID, "2024-01-01", "one"),
			newEntry(alice.ID, "2024-01-03", "two"),
			newEntry(bob.ID, "2024-01-02", "bob"),
		} {
			if err := s.CreateEntry(ctx, e); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := s.UpsertEntryTag(ctx, aiTag(e.ID, tag.ID, 0.9)); err != nil {
				t.Fatalf("tag: %v", err)
			}
		}
		entries, err := s.ListEntriesByTag(ctx, tag.ID, alice.ID)
		if err != nil {
			t.Fatalf("list by tag: %v", err)
		}
		if len(entries) != 2 || entries[0].EntryDate != "2024-01-03" || entries[1].EntryDate != "2024-01-01" {
			t.Fatalf("unexpected entries: %+v", entries)
		}
	})

	t.Run("prompt lookup by date with fallback bound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		prompts := []domain.Prompt{
			{ID: util.NewID(), PromptText: "old", ActiveDate: "2024-01-01", IsActive: true},
			{ID: util.NewID(), PromptText: "recent", ActiveDate: "2024-01-05", IsActive: true},
			{ID: util.NewID(), PromptText: "inactive", ActiveDate: "2024-01-07", IsActive: false},
			{ID: util.NewID(), PromptText: "future", ActiveDate: "2024-02-01", IsActive: true},
		}
		for _, p := range prompts {
			if err := s.SavePrompt(ctx, p); err != nil {
				t.Fatalf("save prompt: %v", err)
			}
		}
		p, ok, err := s.GetPromptForDate(ctx, "2024-01-05")
		if err != nil || !ok || p.PromptText != "recent" {
			t.Fatalf("prompt for date: %+v ok=%v err=%v", p, ok, err)
		}
		if _, ok, _ := s.GetPromptForDate(ctx, "2024-01-07"); ok {
			t.Fatal("inactive prompt must not be returned")
		}
		p, ok, err = s.LatestActivePrompt(ctx, "2024-01-10")
		if err != nil || !ok || p.PromptText != "recent" {
			t.Fatalf("latest active: %+v ok=%v err=%v", p, ok, err)
		}
		if _, ok, _ := s.LatestActivePrompt(ctx, "2023-12-31"); ok {
			t.Fatal("expected no prompt before the first active date")
		}
		all, err := s.ListPrompts(ctx)
		if err != nil || len(all) != 4 || all[0].PromptText != "old" {
			t.Fatalf("list prompts: %v %v", all, err)
		}
	})

	t.Run("user preferences round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := mustUser(t, s, "prefs@example.com")
		if err := s.CreateUser(ctx, domain.User{ID: util.NewID(), Email: u.Email, PasswordHash: "x", PreferredTheme: domain.ThemeCozy}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected duplicate email error, got %v", err)
		}
		now := time.Now().UTC().Truncate(time.Second)
		u.PreferredTheme = domain.ThemeMidnight
		u.NotificationPreferences = map[string]bool{"dailyReminder": true}
		u.LastLoginAt = &now
		if err := s.UpdateUser(ctx, u); err != nil {
			t.Fatalf("update user: %v", err)
		}
		got, ok, err := s.GetUserByEmail(ctx, u.Email)
		if err != nil || !ok {
			t.Fatalf("get by email: ok=%v err=%v", ok, err)
		}
		if got.PreferredTheme != domain.ThemeMidnight || !got.NotificationPreferences["dailyReminder"] {
			t.Fatalf("preferences not stored: %+v", got)
		}
		if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
			t.Fatalf("last login mismatch: %v", got.LastLoginAt)
		}
	})
}

func mustUser(t *testing.T, s Store, email string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{
		ID:                      util.NewID(),
		Email:                   email,
		PasswordHash:            "hash",
		PreferredTheme:          domain.ThemeCozy,
		NotificationPreferences: map[string]bool{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newEntry(userID, date, text string) domain.JournalEntry {
	now := time.Now().UTC()
	return domain.JournalEntry{
		ID:              util.NewID(),
		UserID:          userID,
		EntryDate:       date,
		InitialResponse: text,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func mustConversation(t *testing.T, s Store) domain.Conversation {
	t.Helper()
	ctx := context.Background()
	u := mustUser(t, s, util.NewID()+"@example.com")
	e := newEntry(u.ID, "2024-03-01", "entry")
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	conv := domain.Conversation{ID: util.NewID(), JournalEntryID: e.ID}
	if _, err := s.CreateConversation(ctx, conv, []domain.Message{
		{Role: domain.RoleUser, Content: "opener"},
		{Role: domain.RoleAssistant, Content: "reply"},
	}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func aiTag(entryID, tagID string, score float64) domain.EntryTag {
	return domain.EntryTag{JournalEntryID: entryID, TagID: tagID, Source: domain.TagSourceAI, ConfidenceScore: &score}
}

func assertEntryTag(t *testing.T, s Store, entryID, tagID string, source domain.TagSource, score float64) {
	t.Helper()
	views, err := s.ListEntryTags(context.Background(), entryID)
	if err != nil {
		t.Fatalf("list entry tags: %v", err)
	}
	for _, v := range views {
		if v.ID != tagID {
			continue
		}
		if v.Source != source || v.ConfidenceScore == nil || *v.ConfidenceScore != score {
			t.Fatalf("entry tag = %s/%v, want %s/%v", v.Source, v.ConfidenceScore, source, score)
		}
		return
	}
	t.Fatalf("tag %s not linked to entry %s", tagID, entryID)
}
