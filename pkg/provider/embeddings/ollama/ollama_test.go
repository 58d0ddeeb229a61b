package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/boxkeeper/pkg/provider/embeddings/ollama"
)

// embedServer answers /api/embed with the first len(input) vectors of responses.
func embedServer(t *testing.T, wantModel string, responses [][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.Model != wantModel {
			http.Error(w, "wrong model "+req.Model, http.StatusBadRequest)
			return
		}
		result := responses
		if len(result) > len(req.Input) {
			result = result[:len(req.Input)]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": wantModel, "embeddings": result})
	}))
}

func TestNew_EmptyModel(t *testing.T) {
	t.Parallel()
	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestEmbed_Single(t *testing.T) {
	t.Parallel()

	want := []float32{0.1, 0.2, 0.3, 0.4}
	srv := embedServer(t, "nomic-embed-text", [][]float32{want})
	defer srv.Close()

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Embed(context.Background(), "aa battery")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Embed mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()

	vecs := [][]float32{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	srv := embedServer(t, "nomic-embed-text", vecs)
	defer srv.Close()

	p, err := ollama.New(srv.URL+"/", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.EmbedBatch(context.Background(), []string{"battery", "charger", "tape"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if diff := cmp.Diff(vecs, got); diff != "" {
		t.Errorf("EmbedBatch mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	t.Parallel()
	p, err := ollama.New("http://127.0.0.1:19999", "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("EmbedBatch(nil): got %v, %v; want nil, nil", got, err)
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		opts  []ollama.Option
		want  int
	}{
		{"nomic-embed-text", nil, 768},
		{"nomic-embed-text:latest", nil, 768},
		{"mxbai-embed-large", nil, 1024},
		{"all-minilm", nil, 384},
		{"custom-model", []ollama.Option{ollama.WithDimensions(256)}, 256},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, err := ollama.New("http://127.0.0.1:19999", tt.model, tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.Dimensions(); got != tt.want {
				t.Errorf("Dimensions(): got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDimensions_ProbesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      "custom-embed",
			"embeddings": [][]float32{make([]float32, 512)},
		})
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "custom-embed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range 3 {
		if got := p.Dimensions(); got != 512 {
			t.Errorf("call %d: Dimensions(): got %d, want 512", i, got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 probe request, got %d", n)
	}
}

func TestEmbed_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("not-json"))
		}},
		{"no embeddings", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, err := ollama.New(srv.URL, "nomic-embed-text")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := p.Embed(context.Background(), "hello"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEmbed_ServerDown(t *testing.T) {
	t.Parallel()
	p, err := ollama.New("http://127.0.0.1:19999", "nomic-embed-text", ollama.WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for unreachable server, got nil")
	}
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for unreachable server, got nil")
	}
}

func TestEmbed_ContextCancelled(t *testing.T) {
	t.Parallel()

	stopCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stopCh:
		}
	}))
	defer srv.Close()
	defer close(stopCh)

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := p.Embed(ctx, "hello"); err == nil {
		t.Fatal("expected context cancellation error, got nil")
	}
}
