package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient_Selection(t *testing.T) {
	if _, err := NewClient(Config{Provider: ProviderOpenAI}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := NewClient(Config{Provider: "mystery", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	c, err := NewClient(Config{Provider: "GROQ", APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "groq" || c.DefaultModel() != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected groq client: %s %s", c.Name(), c.DefaultModel())
	}

	a, err := NewClient(Config{Provider: ProviderAnthropic, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "anthropic" || a.DefaultModel() != defaultAnthropicModel {
		t.Fatalf("unexpected anthropic client: %s %s", a.Name(), a.DefaultModel())
	}
}

func TestUsesCompletionTokens(t *testing.T) {
	cases := map[string]bool{
		"gpt-4o-mini":    false,
		"o1-preview":     true,
		"o3-mini":        true,
		"openai/o4-mini": true,
		"gpt-5":          true,
		"llama-3.3-70b":  false,
	}
	for model, want := range cases {
		if got := usesCompletionTokens(model); got != want {
			t.Errorf("usesCompletionTokens(%q) = %v, want %v", model, got, want)
		}
	}
}

// completionServer answers chat completions and records the decoded body.
func completionServer(t *testing.T, got *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "served-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "pong"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 1, "total_tokens": 8}
		}`))
	}))
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, &body)
	defer srv.Close()

	c, err := NewOpenAIClient("openai", "test-key", srv.URL+"/v1/", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Messages:  []ChatMessage{{Role: "system", Content: "be brief"}, {Role: "user", Content: "ping"}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "pong" || resp.Model != "served-model" || resp.TokensIn != 7 || resp.TokensOut != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Fatalf("default model not used: %v", body["model"])
	}
	if body["max_tokens"] != float64(256) {
		t.Fatalf("expected max_tokens=256, got %v", body["max_tokens"])
	}
	if _, ok := body["max_completion_tokens"]; ok {
		t.Fatal("max_completion_tokens should not be sent for gpt-4o-mini")
	}
	if stream, ok := body["stream"]; ok && stream != false {
		t.Fatalf("expected non-streaming request, got stream=%v", stream)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", body["messages"])
	}
}

func TestOpenAIClient_ReasoningModelUsesCompletionTokens(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, &body)
	defer srv.Close()

	c, _ := NewOpenAIClient("openai", "test-key", srv.URL+"/v1", "o3-mini")
	if _, err := c.Complete(context.Background(), &CompletionRequest{
		Messages:  []ChatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 512,
	}); err != nil {
		t.Fatal(err)
	}
	if body["max_completion_tokens"] != float64(512) {
		t.Fatalf("expected max_completion_tokens=512, got %v", body["max_completion_tokens"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Fatal("max_tokens must not be sent to reasoning models")
	}
}

func TestOpenAIClient_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("openai", "test-key", srv.URL, "gpt-4o-mini")
	if _, err := c.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "ping"}},
	}); err == nil {
		t.Fatal("expected error from failing endpoint")
	}
}

func TestMergeTurns(t *testing.T) {
	turns := mergeTurns([]ChatMessage{
		{Role: "system", Content: "rules"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "user", Content: "q1"},
		{Role: "user", Content: "q2"},
	})
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %+v", turns)
	}
	if turns[0].role != "user" || turns[0].parts[0] != "rules" {
		t.Fatalf("system prompt not folded into opening user turn: %+v", turns[0])
	}
	if turns[2].role != "user" || len(turns[2].parts) != 2 {
		t.Fatalf("consecutive user turns not merged: %+v", turns[2])
	}

	folded := mergeTurns([]ChatMessage{{Role: "system", Content: "rules"}, {Role: "user", Content: "hi"}})
	if len(folded) != 1 || len(folded[0].parts) != 2 || folded[0].parts[1] != "hi" {
		t.Fatalf("unexpected fold: %+v", folded)
	}
}
