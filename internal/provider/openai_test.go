package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestOpenAIChat(t *testing.T) {
	var gotAuth string
	var got ChatRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "pong"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenAI(Config{
		ID:       "openai-test",
		Endpoint: srv.URL,
		APIKey:   "sk-test",
	}, zap.NewNop())

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("got auth %q, want Bearer sk-test", gotAuth)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("got model %q, want gpt-4o", got.Model)
	}
	if resp.Content != "pong" {
		t.Errorf("got content %q, want pong", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("got finish reason %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("got total tokens %d, want 4", resp.Usage.TotalTokens)
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "chatcmpl-2", "choices": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenAI(Config{ID: "openai-test", Endpoint: srv.URL}, zap.NewNop())

	_, err := p.Chat(context.Background(), &ChatRequest{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIListModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenAI(Config{ID: "openai-test", Endpoint: srv.URL}, zap.NewNop())

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].ID != "gpt-4o" {
		t.Errorf("got model %q, want gpt-4o", models[0].ID)
	}
}
