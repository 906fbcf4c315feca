package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dropjournal/pkg/domain"
)

const (
	coachSystemPrompt = `You are a thoughtful journaling companion. The user has written a journal entry in response to a daily prompt and wants to explore it further.

Be warm, empathetic and curious. Ask open questions that help the user reflect on their thoughts and feelings. Do not give medical or clinical advice.

Keep each reply to 3-5 sentences.`

	tagSystemPrompt = `You analyze journal entries and extract themes.

Return 3-5 tags of one or two words each, as a JSON array of objects with the fields "name" (lowercase string) and "confidenceScore" (number between 0 and 1).

Respond with the JSON array only.`

	summarySystemPrompt = `You summarize journaling conversations. Write 2-3 sentences capturing the main themes and any insight the user reached. Write in the second person.`

	defaultOpening = "Hi, I'd like to have a thoughtful conversation about my journal entry."

	// MaxTagSuggestions bounds the number of tags returned by AnalyzeTags.
	MaxTagSuggestions = 5
)

// ErrMalformedTags is returned when the model's tag answer contains no JSON array.
var ErrMalformedTags = errors.New("malformed tag response")

// TagSuggestion is a model-proposed tag.
type TagSuggestion struct {
	Name            string  `json:"name"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Coach implements the journaling operations on top of a ChatGenerator.
type Coach struct {
	gen ChatGenerator
}

// NewCoach wraps a chat provider.
func NewCoach(gen ChatGenerator) *Coach {
	return &Coach{gen: gen}
}

// GenerateResponse produces the coach's next reply. history is the prior
// conversation in sequence order; prompt is the newest user message.
func (c *Coach) GenerateResponse(ctx context.Context, prompt string, history []Turn) (string, error) {
	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	if strings.TrimSpace(prompt) != "" {
		turns = append(turns, Turn{Role: RoleUser, Content: prompt})
	}
	if len(normalizeTurns(turns)) == 0 {
		turns = []Turn{{Role: RoleUser, Content: defaultOpening}}
	}
	reply, err := c.gen.Chat(ctx, coachSystemPrompt, turns)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	return reply, nil
}

// AnalyzeTags asks the model for tags describing text.
func (c *Coach) AnalyzeTags(ctx context.Context, text string) ([]TagSuggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	raw, err := c.gen.Chat(ctx, tagSystemPrompt, []Turn{{Role: RoleUser, Content: text}})
	if err != nil {
		return nil, fmt.Errorf("analyze tags: %w", err)
	}
	return ParseTagSuggestions(raw)
}

// GenerateSummary condenses a conversation into a short summary.
func (c *Coach) GenerateSummary(ctx context.Context, history []Turn) (string, error) {
	var sb strings.Builder
	sb.WriteString("Please summarize this journaling conversation:\n\n")
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if t.Role == RoleAssistant {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("User: ")
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	summary, err := c.gen.Chat(ctx, summarySystemPrompt, []Turn{{Role: RoleUser, Content: strings.TrimSpace(sb.String())}})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return summary, nil
}

// ParseTagSuggestions extracts tag suggestions from a model answer. It accepts
// answers wrapped in code fences or surrounded by prose, normalizes names,
// drops duplicates and clamps confidence into [0,1].
func ParseTagSuggestions(raw string) ([]TagSuggestion, error) {
	raw = stripCodeFence(raw)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, ErrMalformedTags
	}
	var items []struct {
		Name            string   `json:"name"`
		ConfidenceScore *float64 `json:"confidenceScore"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTags, err)
	}
	out := make([]TagSuggestion, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := domain.NormalizeTagName(item.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		var score float64
		if item.ConfidenceScore != nil {
			score = clamp01(*item.ConfidenceScore)
		}
		out = append(out, TagSuggestion{Name: name, ConfidenceScore: score})
		if len(out) == MaxTagSuggestions {
			break
		}
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
