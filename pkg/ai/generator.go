package ai

import (
	"context"
	"fmt"
)

// GenerateOptions tunes a single completion request.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// TextGenerator produces a completion for a prompt pair.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)
}

// UpstreamKind classifies provider failures so callers can decide
// between retrying and failing the job.
type UpstreamKind string

const (
	KindRateLimited  UpstreamKind = "rate_limited"
	KindUnauthorized UpstreamKind = "unauthorized"
	KindForbidden    UpstreamKind = "forbidden"
	KindUnreachable  UpstreamKind = "unreachable"
	KindUnknown      UpstreamKind = "unknown"
)

// UpstreamError is returned for failures originating at the LLM provider.
type UpstreamError struct {
	Kind    UpstreamKind
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transient.
func (e *UpstreamError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindUnreachable
}
