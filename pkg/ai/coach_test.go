package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingGenerator struct {
	reply  string
	err    error
	system string
	turns  []Turn
}

func (g *recordingGenerator) Chat(_ context.Context, systemPrompt string, turns []Turn) (string, error) {
	g.system = systemPrompt
	g.turns = append([]Turn(nil), turns...)
	return g.reply, g.err
}

func TestCoachGenerateResponseAppendsPrompt(t *testing.T) {
	gen := &recordingGenerator{reply: "tell me more"}
	coach := NewCoach(gen)
	history := []Turn{{Role: RoleUser, Content: "opener"}, {Role: RoleAssistant, Content: "hello"}}

	reply, err := coach.GenerateResponse(context.Background(), "next", history)
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if reply != "tell me more" {
		t.Fatalf("reply = %q", reply)
	}
	if len(gen.turns) != 3 || gen.turns[2].Content != "next" || gen.turns[2].Role != RoleUser {
		t.Fatalf("unexpected turns: %+v", gen.turns)
	}
	if gen.system != coachSystemPrompt {
		t.Fatalf("expected coach system prompt")
	}
}

func TestCoachGenerateResponseEmptyUsesDefaultOpening(t *testing.T) {
	gen := &recordingGenerator{reply: "hi"}
	if _, err := NewCoach(gen).GenerateResponse(context.Background(), "  ", nil); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if len(gen.turns) != 1 || gen.turns[0].Content != defaultOpening {
		t.Fatalf("unexpected turns: %+v", gen.turns)
	}
}

func TestCoachGenerateResponseWrapsError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewCoach(&recordingGenerator{err: boom}).GenerateResponse(context.Background(), "x", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCoachGenerateSummaryTranscript(t *testing.T) {
	gen := &recordingGenerator{reply: "You reflected on work."}
	summary, err := NewCoach(gen).GenerateSummary(context.Background(), []Turn{
		{Role: RoleUser, Content: "I was tired"},
		{Role: RoleAssistant, Content: "Why?"},
	})
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if summary != "You reflected on work." {
		t.Fatalf("summary = %q", summary)
	}
	want := "Please summarize this journaling conversation:\n\nUser: I was tired\n\nAssistant: Why?"
	if len(gen.turns) != 1 || gen.turns[0].Content != want {
		t.Fatalf("transcript = %q", gen.turns[0].Content)
	}
}

func TestCoachAnalyzeTagsEmptyText(t *testing.T) {
	gen := &recordingGenerator{reply: "[]"}
	tags, err := NewCoach(gen).AnalyzeTags(context.Background(), "   ")
	if err != nil || tags != nil {
		t.Fatalf("expected no tags and no call, got %v %v", tags, err)
	}
	if gen.turns != nil {
		t.Fatalf("generator should not be called")
	}
}

func TestParseTagSuggestions(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    []TagSuggestion
		wantErr bool
	}{
		{
			name: "plain array",
			raw:  `[{"name":"Gratitude","confidenceScore":0.9},{"name":"family","confidenceScore":0.7}]`,
			want: []TagSuggestion{{Name: "gratitude", ConfidenceScore: 0.9}, {Name: "family", ConfidenceScore: 0.7}},
		},
		{
			name: "fenced",
			raw:  "```json\n[{\"name\":\"work stress\",\"confidenceScore\":0.8}]\n```",
			want: []TagSuggestion{{Name: "work stress", ConfidenceScore: 0.8}},
		},
		{
			name: "prose around",
			raw:  "Here are the tags: [{\"name\":\"hope\",\"confidenceScore\":0.5}] hope that helps",
			want: []TagSuggestion{{Name: "hope", ConfidenceScore: 0.5}},
		},
		{
			name: "clamped and deduped",
			raw:  `[{"name":"Joy","confidenceScore":1.7},{"name":" joy ","confidenceScore":0.2},{"name":"","confidenceScore":0.4},{"name":"sadness","confidenceScore":-3},{"name":"rest"}]`,
			want: []TagSuggestion{{Name: "joy", ConfidenceScore: 1}, {Name: "sadness", ConfidenceScore: 0}, {Name: "rest", ConfidenceScore: 0}},
		},
		{
			name: "capped",
			raw:  `[{"name":"a"},{"name":"b"},{"name":"c"},{"name":"d"},{"name":"e"},{"name":"f"}]`,
			want: []TagSuggestion{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}},
		},
		{name: "no array", raw: "I cannot do that", wantErr: true},
		{name: "broken json", raw: `[{"name": ]`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTagSuggestions(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedTags) {
					t.Fatalf("expected ErrMalformedTags, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("item %d: got %+v want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNormalizeTurns(t *testing.T) {
	got := normalizeTurns([]Turn{
		{Role: RoleUser, Content: "a"},
		{Role: "system", Content: "b"},
		{Role: RoleAssistant, Content: "  "},
		{Role: RoleAssistant, Content: "c"},
	})
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Content != "a\n\nb" || !strings.EqualFold(got[1].Role, RoleAssistant) {
		t.Fatalf("got %+v", got)
	}
}
