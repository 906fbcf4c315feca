package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dropjournal/internal/util"
	"dropjournal/pkg/ai"
	"dropjournal/pkg/domain"
	"dropjournal/pkg/queue"
	"dropjournal/pkg/store"
)

const maxMessageLength = 4000

// ConversationDetail is a conversation with its ordered messages.
type ConversationDetail struct {
	domain.Conversation
	Messages []domain.Message `json:"messages"`
}

// StartConversation opens the coaching conversation for an entry. The opener
// is synthesized from the prompt and the entry text and stored as the user's
// first message; the coach's reply is the second. Nothing is stored if the
// coach fails.
func (a *App) StartConversation(ctx context.Context, user domain.User, entryID string) (ConversationDetail, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return ConversationDetail{}, err
	}
	if _, ok, err := a.store.GetConversationByEntry(ctx, entry.ID); err != nil {
		return ConversationDetail{}, fmt.Errorf("check conversation: %w", err)
	} else if ok {
		return ConversationDetail{}, ErrConversationExists
	}

	opener, err := a.openingMessage(ctx, entry)
	if err != nil {
		return ConversationDetail{}, err
	}
	reply, err := a.generate(ctx, opener, nil)
	if err != nil {
		return ConversationDetail{}, err
	}

	now := a.now().UTC()
	conv := domain.Conversation{
		ID:             util.NewID(),
		JournalEntryID: entry.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	msgs, err := a.store.CreateConversation(ctx, conv, []domain.Message{
		{Role: domain.RoleUser, Content: opener},
		{Role: domain.RoleAssistant, Content: reply},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ConversationDetail{}, ErrConversationExists
		}
		return ConversationDetail{}, fmt.Errorf("create conversation: %w", err)
	}
	return ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// GetConversation returns the entry's conversation with messages in order.
func (a *App) GetConversation(ctx context.Context, user domain.User, entryID string) (ConversationDetail, error) {
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return ConversationDetail{}, err
	}
	conv, ok, err := a.store.GetConversationByEntry(ctx, entry.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("fetch conversation: %w", err)
	}
	if !ok {
		return ConversationDetail{}, ErrConversationNotFound
	}
	msgs, err := a.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("list messages: %w", err)
	}
	return ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// SendMessage appends the user's message and the coach's reply. If the coach
// fails, the user's message stays stored and ErrUpstream is returned.
func (a *App) SendMessage(ctx context.Context, user domain.User, entryID, content string) (ConversationDetail, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ConversationDetail{}, invalid("content is required")
	}
	if len(content) > maxMessageLength {
		return ConversationDetail{}, invalid("content must be at most %d characters", maxMessageLength)
	}
	entry, err := a.ownedEntry(ctx, user, entryID)
	if err != nil {
		return ConversationDetail{}, err
	}
	conv, ok, err := a.store.GetConversationByEntry(ctx, entry.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("fetch conversation: %w", err)
	}
	if !ok {
		return ConversationDetail{}, ErrConversationNotFound
	}

	history, err := a.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("list messages: %w", err)
	}
	if len(history) >= a.maxMessages {
		return ConversationDetail{}, ErrMessageLimit
	}

	if _, err := a.store.AppendMessage(ctx, conv.ID, domain.RoleUser, content); err != nil {
		return ConversationDetail{}, fmt.Errorf("append user message: %w", err)
	}
	reply, err := a.generate(ctx, content, toTurns(history))
	if err != nil {
		return ConversationDetail{}, err
	}
	if _, err := a.store.AppendMessage(ctx, conv.ID, domain.RoleAssistant, reply); err != nil {
		return ConversationDetail{}, fmt.Errorf("append reply: %w", err)
	}

	msgs, err := a.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) >= a.summaryThreshold {
		a.dispatch(ctx, queue.KindConversationSummary, conv.ID)
	}
	return ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// SummarizeConversation regenerates a conversation's summary. It runs as a
// background job; on failure the previous summary is kept.
func (a *App) SummarizeConversation(ctx context.Context, conversationID string) error {
	msgs, err := a.store.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	summary, err := a.coach.GenerateSummary(ctx, toTurns(msgs))
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}
	if err := a.store.SetConversationSummary(ctx, conversationID, summary); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("summary target gone", "conversation_id", conversationID)
			return nil
		}
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

func (a *App) openingMessage(ctx context.Context, entry domain.JournalEntry) (string, error) {
	promptText := "Today's reflection"
	if entry.PromptID != nil {
		p, ok, err := a.store.GetPrompt(ctx, *entry.PromptID)
		if err != nil {
			return "", fmt.Errorf("fetch prompt: %w", err)
		}
		if ok {
			promptText = p.PromptText
		}
	}
	return fmt.Sprintf("I just responded to the journal prompt \"%s\" with this: \"%s\"", promptText, entry.InitialResponse), nil
}

// generate calls the coach under the configured timeout and maps failures to
// ErrUpstream.
func (a *App) generate(ctx context.Context, prompt string, history []ai.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.aiTimeout)
	defer cancel()
	reply, err := a.coach.GenerateResponse(ctx, prompt, history)
	if err != nil {
		slog.Error("coach response failed", "err", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	return reply, nil
}

func toTurns(msgs []domain.Message) []ai.Turn {
	turns := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := ai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = ai.RoleAssistant
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Content})
	}
	return turns
}
