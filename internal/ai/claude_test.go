package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/errbook/internal/config"
)

func newTestClaude(t *testing.T, handler http.HandlerFunc) *Claude {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClaude(config.GraderConfig{
		Provider: config.ProviderClaude,
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClaude: %v", err)
	}
	return c
}

func replyMessage(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-haiku-latest",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 12, "output_tokens": 34},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestClaudeGrade(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q", got)
		}
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxTokens != 1024 || len(req.System) != 1 || req.System[0].Text != systemPrompt {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		replyMessage(w, `{"is_correct": false, "error_analyses": [
			{"category": "systematic", "subtype": "articles", "explanation": "an before a vowel",
			 "original_phrase": "a apple", "correction": "an apple"}]}`)
	})

	result, err := c.Grade(context.Background(), "Я съел яблоко", "I ate a apple")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.IsCorrect || len(result.ErrorAnalyses) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if a := result.ErrorAnalyses[0]; a.Category != "systematic" || a.Correction != "an apple" {
		t.Errorf("analysis = %+v", a)
	}
}

func TestClaudeGradeBadRequest(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := c.Grade(context.Background(), "s", "a")
	var ge *GraderError
	if !errors.As(err, &ge) {
		t.Fatalf("got %v, want *GraderError", err)
	}
	if ge.Transient {
		t.Errorf("bad request reported as transient: %v", err)
	}
}

func TestClaudeGradeMalformedReply(t *testing.T) {
	c := newTestClaude(t, func(w http.ResponseWriter, r *http.Request) {
		replyMessage(w, "Looks fine to me")
	})

	_, err := c.Grade(context.Background(), "s", "a")
	if err == nil || IsTransient(err) {
		t.Fatalf("got %v, want a fatal grader error", err)
	}
}
