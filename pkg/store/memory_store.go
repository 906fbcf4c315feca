package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
)

// MemoryStore is an in-process Store for tests and local runs.
// It enforces the same uniqueness rules as the database schema.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	prompts       map[string]domain.Prompt
	entries       map[string]domain.JournalEntry
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversationID -> ordered messages
	tags          map[string]domain.Tag
	entryTags     map[entryTagKey]domain.EntryTag
}

type entryTagKey struct {
	entryID, tagID string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		prompts:       make(map[string]domain.Prompt),
		entries:       make(map[string]domain.JournalEntry),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		tags:          make(map[string]domain.Tag),
		entryTags:     make(map[entryTagKey]domain.EntryTag),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return cloneUser(u), ok, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.PasswordHash = u.PasswordHash
	existing.PreferredTheme = u.PreferredTheme
	existing.NotificationPreferences = u.NotificationPreferences
	existing.LastLoginAt = u.LastLoginAt
	existing.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = cloneUser(existing)
	return nil
}

func (s *MemoryStore) SavePrompt(_ context.Context, p domain.Prompt) error {
	if _, err := domain.ParseDate(p.ActiveDate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.prompts[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPrompt(_ context.Context, id string) (domain.Prompt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	return p, ok, nil
}

func (s *MemoryStore) GetPromptForDate(_ context.Context, date string) (domain.Prompt, bool, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return domain.Prompt{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  domain.Prompt
		found bool
	)
	for _, p := range s.prompts {
		if !p.IsActive || p.ActiveDate != date {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best, found = p, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) LatestActivePrompt(_ context.Context, onOrBefore string) (domain.Prompt, bool, error) {
	if _, err := domain.ParseDate(onOrBefore); err != nil {
		return domain.Prompt{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  domain.Prompt
		found bool
	)
	for _, p := range s.prompts {
		// YYYY-MM-DD strings order like the dates they encode.
		if !p.IsActive || p.ActiveDate > onOrBefore {
			continue
		}
		if !found || p.ActiveDate > best.ActiveDate ||
			(p.ActiveDate == best.ActiveDate && p.CreatedAt.After(best.CreatedAt)) {
			best, found = p, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) ListPrompts(_ context.Context) ([]domain.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActiveDate != out[j].ActiveDate {
			return out[i].ActiveDate < out[j].ActiveDate
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateEntry(_ context.Context, e domain.JournalEntry) error {
	if _, err := domain.ParseDate(e.EntryDate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.entries {
		if existing.UserID == e.UserID && existing.EntryDate == e.EntryDate {
			return ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	s.entries[e.ID] = cloneEntry(e)
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id string) (domain.JournalEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return cloneEntry(e), ok, nil
}

func (s *MemoryStore) GetEntryByUserAndDate(_ context.Context, userID, date string) (domain.JournalEntry, bool, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return domain.JournalEntry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.EntryDate == date {
			return cloneEntry(e), true, nil
		}
	}
	return domain.JournalEntry{}, false, nil
}

func (s *MemoryStore) ListEntriesByUser(_ context.Context, userID string) ([]domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JournalEntry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, cloneEntry(e))
		}
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UpdateEntry(_ context.Context, e domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[e.ID]
	if !ok {
		return ErrNotFound
	}
	existing.InitialResponse = e.InitialResponse
	existing.MoodScore = e.MoodScore
	existing.IsFavorite = e.IsFavorite
	existing.UpdatedAt = time.Now().UTC()
	s.entries[e.ID] = cloneEntry(existing)
	return nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, c domain.Conversation, opening []domain.Message) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[c.ID]; ok {
		return nil, ErrDuplicate
	}
	for _, existing := range s.conversations {
		if existing.JournalEntryID == c.JournalEntryID {
			return nil, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	msgs := make([]domain.Message, 0, len(opening))
	for i, m := range opening {
		if m.ID == "" {
			m.ID = util.NewID()
		}
		m.ConversationID = c.ID
		m.SequenceOrder = i + 1
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		msgs = append(msgs, m)
	}
	s.conversations[c.ID] = cloneConversation(c)
	s.messages[c.ID] = msgs
	return append([]domain.Message(nil), msgs...), nil
}

func (s *MemoryStore) GetConversationByEntry(_ context.Context, entryID string) (domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.JournalEntryID == entryID {
			return cloneConversation(c), true, nil
		}
	}
	return domain.Conversation{}, false, nil
}

func (s *MemoryStore) SetConversationSummary(_ context.Context, conversationID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	c.Summary = &summary
	c.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = c
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, conversationID string, role domain.MessageRole, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return domain.Message{}, ErrNotFound
	}
	msgs := s.messages[conversationID]
	next := 1
	if n := len(msgs); n > 0 {
		next = msgs[n-1].SequenceOrder + 1
	}
	now := time.Now().UTC()
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		SequenceOrder:  next,
		CreatedAt:      now,
	}
	s.messages[conversationID] = append(msgs, msg)
	c.UpdatedAt = now
	s.conversations[conversationID] = c
	return msg, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message{}, s.messages[conversationID]...), nil
}

func (s *MemoryStore) CountMessages(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID]), nil
}

func (s *MemoryStore) EnsureTag(_ context.Context, t domain.Tag) (domain.Tag, error) {
	t.Name = domain.NormalizeTagName(t.Name)
	if t.Name == "" {
		return domain.Tag{}, errors.New("tag name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tags {
		if existing.Name == t.Name {
			return existing, nil
		}
	}
	if t.ID == "" {
		t.ID = util.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.tags[t.ID] = t
	return t, nil
}

func (s *MemoryStore) GetTag(_ context.Context, id string) (domain.Tag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	return t, ok, nil
}

func (s *MemoryStore) ListTags(_ context.Context) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpsertEntryTag(_ context.Context, et domain.EntryTag) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryTagKey{entryID: et.JournalEntryID, tagID: et.TagID}
	now := time.Now().UTC()
	existing, ok := s.entryTags[key]
	if ok {
		if existing.Source == domain.TagSourceUser && et.Source != domain.TagSourceUser {
			return false, nil
		}
		existing.Source = et.Source
		existing.ConfidenceScore = cloneFloat(et.ConfidenceScore)
		existing.UpdatedAt = now
		s.entryTags[key] = existing
		return true, nil
	}
	et.ConfidenceScore = cloneFloat(et.ConfidenceScore)
	et.CreatedAt = now
	et.UpdatedAt = now
	s.entryTags[key] = et
	return true, nil
}

func (s *MemoryStore) ListEntryTags(_ context.Context, entryID string) ([]domain.EntryTagView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EntryTagView, 0)
	for key, et := range s.entryTags {
		if key.entryID != entryID {
			continue
		}
		tag, ok := s.tags[key.tagID]
		if !ok {
			continue
		}
		out = append(out, domain.EntryTagView{
			Tag:             tag,
			Source:          et.Source,
			ConfidenceScore: cloneFloat(et.ConfidenceScore),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := confidenceOrOne(out[i].ConfidenceScore), confidenceOrOne(out[j].ConfidenceScore)
		if ci != cj {
			return ci > cj
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) RemoveEntryTag(_ context.Context, entryID, tagID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryTagKey{entryID: entryID, tagID: tagID}
	if _, ok := s.entryTags[key]; !ok {
		return false, nil
	}
	delete(s.entryTags, key)
	return true, nil
}

func (s *MemoryStore) ListEntriesByTag(_ context.Context, tagID, userID string) ([]domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JournalEntry, 0)
	for key := range s.entryTags {
		if key.tagID != tagID {
			continue
		}
		e, ok := s.entries[key.entryID]
		if !ok || e.UserID != userID {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	sortEntriesNewestFirst(out)
	return out, nil
}

func sortEntriesNewestFirst(entries []domain.JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EntryDate != entries[j].EntryDate {
			return entries[i].EntryDate > entries[j].EntryDate
		}
		return entries[i].ID < entries[j].ID
	})
}

func confidenceOrOne(v *float64) float64 {
	if v == nil {
		return 1
	}
	return *v
}

func cloneUser(u domain.User) domain.User {
	if u.NotificationPreferences != nil {
		prefs := make(map[string]bool, len(u.NotificationPreferences))
		for k, v := range u.NotificationPreferences {
			prefs[k] = v
		}
		u.NotificationPreferences = prefs
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

func cloneEntry(e domain.JournalEntry) domain.JournalEntry {
	if e.PromptID != nil {
		id := *e.PromptID
		e.PromptID = &id
	}
	if e.MoodScore != nil {
		score := *e.MoodScore
		e.MoodScore = &score
	}
	return e
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	if c.Summary != nil {
		summary := *c.Summary
		c.Summary = &summary
	}
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
