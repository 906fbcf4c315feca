package app

import (
	"context"
	"fmt"
	"strings"

	"dropjournal/internal/util"
	"dropjournal/pkg/domain"
)

// TodayPrompt returns the active prompt bound to today or, failing that, the
// most recent active prompt before today.
func (a *App) TodayPrompt(ctx context.Context) (domain.Prompt, error) {
	today := a.Today()
	p, ok, err := a.store.GetPromptForDate(ctx, today)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("prompt for %s: %w", today, err)
	}
	if ok {
		return p, nil
	}
	p, ok, err = a.store.LatestActivePrompt(ctx, today)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("latest prompt: %w", err)
	}
	if !ok {
		return domain.Prompt{}, ErrPromptNotFound
	}
	return p, nil
}

// AddPrompt schedules a prompt for a calendar date.
func (a *App) AddPrompt(ctx context.Context, date, text, category string) (domain.Prompt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Prompt{}, invalid("prompt text is required")
	}
	if _, err := domain.ParseDate(date); err != nil {
		return domain.Prompt{}, invalid("%v", err)
	}
	p := domain.Prompt{
		ID:         util.NewID(),
		PromptText: text,
		Category:   strings.TrimSpace(category),
		ActiveDate: strings.TrimSpace(date),
		IsActive:   true,
		CreatedAt:  a.now().UTC(),
	}
	if err := a.store.SavePrompt(ctx, p); err != nil {
		return domain.Prompt{}, fmt.Errorf("save prompt: %w", err)
	}
	return p, nil
}

// ListPrompts returns every stored prompt.
func (a *App) ListPrompts(ctx context.Context) ([]domain.Prompt, error) {
	prompts, err := a.store.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

var defaultPrompts = []struct {
	offset int
	text   string
}{
	{-2, "What's something you're looking forward to?"},
	{-1, "What made you smile today?"},
	{0, "What's one small win you had today?"},
	{1, "What's something new you learned recently?"},
	{2, "What's a challenge you're currently facing?"},
	{3, "What's something you wish you could do more of?"},
	{4, "Who is someone that inspires you and why?"},
}

var systemTags = []domain.Tag{
	{Name: "work", Description: "Career and professional life"},
	{Name: "relationships", Description: "Personal connections and interactions"},
	{Name: "health", Description: "Physical and mental wellbeing"},
	{Name: "growth", Description: "Personal development and learning"},
	{Name: "gratitude", Description: "Appreciation and thankfulness"},
	{Name: "challenges", Description: "Difficulties and obstacles"},
	{Name: "goals", Description: "Aspirations and targets"},
	{Name: "reflection", Description: "Introspection and self-awareness"},
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Prompts int
	Tags    int
}

// Seed installs a week of prompts around today and the system tags. Dates
// that already have a prompt and tags that already exist are skipped.
func (a *App) Seed(ctx context.Context) (SeedResult, error) {
	var res SeedResult
	today, err := domain.ParseDate(a.Today())
	if err != nil {
		return res, err
	}
	for _, dp := range defaultPrompts {
		date := domain.FormatDate(today.AddDate(0, 0, dp.offset))
		if _, ok, err := a.store.GetPromptForDate(ctx, date); err != nil {
			return res, fmt.Errorf("prompt for %s: %w", date, err)
		} else if ok {
			continue
		}
		if _, err := a.AddPrompt(ctx, date, dp.text, ""); err != nil {
			return res, err
		}
		res.Prompts++
	}
	existing, err := a.store.ListTags(ctx)
	if err != nil {
		return res, fmt.Errorf("list tags: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t.Name] = struct{}{}
	}
	for _, t := range systemTags {
		if _, ok := have[t.Name]; ok {
			continue
		}
		t.ID = util.NewID()
		t.IsSystem = true
		t.CreatedAt = a.now().UTC()
		if _, err := a.store.EnsureTag(ctx, t); err != nil {
			return res, fmt.Errorf("ensure tag %s: %w", t.Name, err)
		}
		res.Tags++
	}
	return res, nil
}
