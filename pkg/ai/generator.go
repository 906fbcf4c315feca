package ai

import (
	"context"
	"errors"
	"strings"
)

// Roles used in chat turns. Providers map them to their own vocabulary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Turn is one message of a chat transcript.
type Turn struct {
	Role    string
	Content string
}

// ChatGenerator produces the next assistant turn for a transcript.
// Implementations are stateless; callers send the full history each time.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// normalizeTurns drops blank turns and merges consecutive turns of the same
// role, which several providers reject.
func normalizeTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := RoleUser
		if t.Role == RoleAssistant {
			role = RoleAssistant
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + content
			continue
		}
		out = append(out, Turn{Role: role, Content: content})
	}
	return out
}
