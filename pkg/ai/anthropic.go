package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 1024
)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewAnthropicGenerator builds a ChatGenerator for the Messages API.
// baseURL may be empty for the public endpoint.
func NewAnthropicGenerator(baseURL, apiKey, model string, maxTokens int) (*AnthropicGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicGenerator{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      strings.TrimSpace(model),
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Chat implements ChatGenerator.
func (g *AnthropicGenerator) Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("anthropic model required")
	}
	turns = normalizeTurns(turns)
	if len(turns) == 0 {
		return "", fmt.Errorf("anthropic chat requires at least one turn")
	}
	reqBody := anthropicRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    strings.TrimSpace(systemPrompt),
		Messages:  make([]anthropicMessage, 0, len(turns)),
	}
	for _, t := range turns {
		reqBody.Messages = append(reqBody.Messages, anthropicMessage{Role: t.Role, Content: t.Content})
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp anthropicErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("anthropic api error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("anthropic api error: %s", resp.Status)
	}
	var msgResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("anthropic decode: %w", err)
	}
	var sb strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
