package metadata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"seogen/pkg/ai"
	"seogen/pkg/domain"
)

type stubLLM struct {
	completion string
	err        error

	gotUserPrompt string
	gotOpts       ai.GenerateOptions
}

func (s *stubLLM) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts ai.GenerateOptions) (string, error) {
	s.gotUserPrompt = userPrompt
	s.gotOpts = opts
	if s.err != nil {
		return "", s.err
	}
	return s.completion, nil
}

func defaultOpts() domain.GenerationOptions {
	return domain.GenerationOptions{Language: "english", Tone: "formal", MaxTitleLength: 60}
}

func TestGenerateParsesJSONWithProse(t *testing.T) {
	llm := &stubLLM{completion: "Here is your metadata:\n```json\n{\"title\": \"Great {Title}\", \"meta_description\": \"A fine description.\"}\n```\nHope it helps!"}
	g := New(llm)
	meta, err := g.Generate(context.Background(), "some document text", defaultOpts())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if meta.Title != "Great {Title}" || meta.MetaDescription != "A fine description." {
		t.Fatalf("meta = %+v", meta)
	}
	if llm.gotOpts.Temperature != 0.7 {
		t.Fatalf("temperature = %v", llm.gotOpts.Temperature)
	}
	if llm.gotOpts.MaxTokens != 160 {
		t.Fatalf("max tokens = %d", llm.gotOpts.MaxTokens)
	}
	if !strings.Contains(llm.gotUserPrompt, "ENGLISH") {
		t.Fatalf("prompt missing uppercased language: %q", llm.gotUserPrompt)
	}
}

func TestGenerateNoJSONObject(t *testing.T) {
	g := New(&stubLLM{completion: "Sorry, I can only answer questions about cooking."})
	_, err := g.Generate(context.Background(), "text", defaultOpts())
	if !errors.Is(err, ErrNoJSONObject) {
		t.Fatalf("err = %v, want ErrNoJSONObject", err)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	g := New(&stubLLM{completion: `{"title": "Only a title"}`})
	_, err := g.Generate(context.Background(), "text", defaultOpts())
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
}

func TestGeneratePropagatesUpstreamError(t *testing.T) {
	upstream := &ai.UpstreamError{Kind: ai.KindRateLimited, Message: "slow down"}
	g := New(&stubLLM{err: upstream})
	_, err := g.Generate(context.Background(), "text", defaultOpts())
	var gotUpstream *ai.UpstreamError
	if !errors.As(err, &gotUpstream) || gotUpstream.Kind != ai.KindRateLimited {
		t.Fatalf("err = %v, want rate-limited upstream error", err)
	}
}

func TestGenerateTruncatesInput(t *testing.T) {
	llm := &stubLLM{completion: `{"title": "T", "meta_description": "D"}`}
	g := New(llm)
	text := strings.Repeat("a", 2998) + "XY" + strings.Repeat("Q", 500)
	if _, err := g.Generate(context.Background(), text, defaultOpts()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(llm.gotUserPrompt, "XY") {
		t.Fatalf("prompt should include rune 3000")
	}
	if strings.Contains(llm.gotUserPrompt, "QQ") {
		t.Fatalf("prompt should not include text past the input cap")
	}
}

func TestExtractJSONObject(t *testing.T) {
	raw, ok := extractJSONObject(`noise {"a": "b } c", "n": {"x": 1}} trailing {"other": 2}`)
	if !ok {
		t.Fatalf("expected to find object")
	}
	if raw != `{"a": "b } c", "n": {"x": 1}}` {
		t.Fatalf("raw = %q", raw)
	}
	if _, ok := extractJSONObject("no braces here"); ok {
		t.Fatalf("expected no object")
	}
	if _, ok := extractJSONObject(`{"unterminated": true`); ok {
		t.Fatalf("expected unbalanced object to be rejected")
	}
}
