package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGenerator(handler http.HandlerFunc) (*OpenAICompatGenerator, *httptest.Server) {
	srv := httptest.NewServer(handler)
	gen := NewOpenAICompatGenerator(srv.URL, "test-key", "test-model")
	return gen, srv
}

func TestGenerateTextSuccess(t *testing.T) {
	var gotReq oaiChatRequest
	gen, srv := newTestGenerator(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  generated text  "}},
			},
		})
	})
	defer srv.Close()

	text, err := gen.GenerateText(context.Background(), "system prompt", "user prompt", GenerateOptions{Temperature: 0.7, MaxTokens: 160})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "generated text" {
		t.Fatalf("text = %q", text)
	}
	if gotReq.Model != "test-model" {
		t.Fatalf("model = %q", gotReq.Model)
	}
	if gotReq.Temperature != 0.7 || gotReq.MaxTokens != 160 {
		t.Fatalf("options = (%v, %d)", gotReq.Temperature, gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
}

func TestGenerateTextClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   UpstreamKind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusInternalServerError, KindUnknown},
	}
	for _, tc := range cases {
		gen, srv := newTestGenerator(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "provider said no"},
			})
		})
		_, err := gen.GenerateText(context.Background(), "", "prompt", GenerateOptions{})
		srv.Close()
		var upstream *UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("status %d: error %v is not UpstreamError", tc.status, err)
		}
		if upstream.Kind != tc.kind {
			t.Fatalf("status %d: kind = %q, want %q", tc.status, upstream.Kind, tc.kind)
		}
		if upstream.Message != "provider said no" {
			t.Fatalf("status %d: message = %q", tc.status, upstream.Message)
		}
	}
}

func TestGenerateTextUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	gen := NewOpenAICompatGenerator(srv.URL, "", "test-model")
	_, err := gen.GenerateText(context.Background(), "", "prompt", GenerateOptions{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error %v is not UpstreamError", err)
	}
	if upstream.Kind != KindUnreachable {
		t.Fatalf("kind = %q, want %q", upstream.Kind, KindUnreachable)
	}
	if !upstream.Retryable() {
		t.Fatalf("unreachable errors should be retryable")
	}
}

func TestGenerateTextEmptyChoices(t *testing.T) {
	gen, srv := newTestGenerator(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})
	defer srv.Close()
	_, err := gen.GenerateText(context.Background(), "", "prompt", GenerateOptions{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error %v is not UpstreamError", err)
	}
	if upstream.Kind != KindUnknown {
		t.Fatalf("kind = %q, want %q", upstream.Kind, KindUnknown)
	}
	if upstream.Retryable() {
		t.Fatalf("unknown errors should not be retryable")
	}
}
