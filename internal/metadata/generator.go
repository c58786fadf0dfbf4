package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"seogen/pkg/ai"
	"seogen/pkg/domain"
)

// maxInputRunes caps the document text sent to the model.
const maxInputRunes = 3000

const systemPrompt = "You generate SEO-optimized metadata."

var (
	// ErrNoJSONObject means the completion contained no JSON object.
	ErrNoJSONObject = errors.New("no JSON object in completion")
	// ErrMissingFields means the JSON object lacked title or meta_description.
	ErrMissingFields = errors.New("completion JSON missing title or meta_description")
)

// Generator produces SEO metadata from document text via an LLM.
type Generator struct {
	llm ai.TextGenerator
}

// New builds a Generator on top of a text generator.
func New(llm ai.TextGenerator) *Generator {
	return &Generator{llm: llm}
}

// Generate asks the model for a title and meta description. The model is
// instructed to answer with a JSON object; prose around the object is
// tolerated and stripped.
func (g *Generator) Generate(ctx context.Context, text string, opts domain.GenerationOptions) (domain.Metadata, error) {
	text = truncateRunes(text, maxInputRunes)
	userPrompt := buildPrompt(text, opts)
	completion, err := g.llm.GenerateText(ctx, systemPrompt, userPrompt, ai.GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   opts.MaxTitleLength + 100,
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	raw, ok := extractJSONObject(completion)
	if !ok {
		return domain.Metadata{}, ErrNoJSONObject
	}
	var meta domain.Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: %s", ErrNoJSONObject, err)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.MetaDescription = strings.TrimSpace(meta.MetaDescription)
	if meta.Title == "" || meta.MetaDescription == "" {
		return domain.Metadata{}, ErrMissingFields
	}
	return meta, nil
}

func buildPrompt(text string, opts domain.GenerationOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate an SEO title and meta description for the document below.\n")
	fmt.Fprintf(&b, "Write the output in %s.\n", strings.ToUpper(opts.Language))
	fmt.Fprintf(&b, "Use a %s tone.\n", opts.Tone)
	fmt.Fprintf(&b, "The title must be at most %d characters. The meta description must be at most 160 characters.\n", opts.MaxTitleLength)
	b.WriteString("Respond with a JSON object only, with exactly two keys: \"title\" and \"meta_description\".\n\n")
	b.WriteString("Document:\n")
	b.WriteString(text)
	return b.String()
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// extractJSONObject returns the first balanced top-level JSON object in the
// text, tracking string literals and escapes so braces inside values do not
// confuse the scan.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return "", false
}
