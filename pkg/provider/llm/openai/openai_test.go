package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/boxkeeper/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role  string
		check func(t *testing.T, m llm.Message)
	}{
		{llm.RoleSystem, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfSystem == nil {
				t.Fatalf("system: got %+v, err %v", p, err)
			}
		}},
		{llm.RoleUser, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfUser == nil {
				t.Fatalf("user: got %+v, err %v", p, err)
			}
		}},
		{llm.RoleAssistant, func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfAssistant == nil {
				t.Fatalf("assistant: got %+v, err %v", p, err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			tt.check(t, llm.Message{Role: tt.role, Content: "hello"})
		})
	}
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	t.Parallel()
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if p.ModelID() != "gpt-4o-mini" {
		t.Errorf("ModelID: got %q, want gpt-4o-mini", p.ModelID())
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Return JSON only.",
		Messages:     []llm.Message{llm.UserMessage("add 2 batteries to box A")},
		Temperature:  0.1,
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("buildParams: unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages: got %d, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if got := params.Temperature.Value; got != 0.1 {
		t.Errorf("temperature: got %v, want 0.1", got)
	}
	if got := params.MaxCompletionTokens.Value; got != 256 {
		t.Errorf("max tokens: got %d, want 256", got)
	}

	if _, err := p.buildParams(llm.CompletionRequest{}); err == nil {
		t.Error("expected error for empty messages")
	}
}

func TestComplete_AgainstFakeServer(t *testing.T) {
	t.Parallel()

	models := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		models <- body.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"intent\":\"FIND\"}"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage("where are the scissors")},
	})
	if err != nil {
		t.Fatalf("Complete: unexpected error: %v", err)
	}
	if resp.Content != `{"intent":"FIND"}` {
		t.Errorf("content: got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 17 {
		t.Errorf("total tokens: got %d, want 17", resp.Usage.TotalTokens)
	}
	if got := <-models; got != "gpt-4o-mini" {
		t.Errorf("model sent: got %q", got)
	}
}
