// Unit tests for OpenAIProvider.
// Uses httptest.NewServer to mock the API — no real provider needed.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newEmbedServer returns a test server whose /embeddings handler echoes one
// deterministic vector per input: [float(len(text)), 0.5].
func newEmbedServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}

		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		resp := openAIEmbedResponse{Usage: openAIUsage{TotalTokens: len(req.Input)}}
		// Return data in reverse order to exercise index-based reassembly.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, openAIEmbedData{
				Index:     i,
				Embedding: []float32{float32(len(req.Input[i])), 0.5},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
}

func TestOpenAIProvider_Embed_PreservesOrder(t *testing.T) {
	t.Parallel()

	srv := newEmbedServer(t, nil)
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "k", "text-embedding-3-small", "gpt-4o-mini", time.Second)
	resp, err := p.Embed(context.Background(), EmbedRequest{Texts: []string{"x", "yy", "zzz"}})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(resp.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(resp.Embeddings))
	}
	for i, wantLen := range []float32{1, 2, 3} {
		if resp.Embeddings[i][0] != wantLen {
			t.Errorf("embedding[%d][0] = %v, want %v (order not preserved)", i, resp.Embeddings[i][0], wantLen)
		}
	}
}

func TestOpenAIProvider_Embed_SplitsLargeInput(t *testing.T) {
	t.Parallel()

	var calls int64
	srv := newEmbedServer(t, &calls)
	defer srv.Close()

	texts := make([]string, embedBatchSize*2+5)
	for i := range texts {
		texts[i] = strings.Repeat("a", i%7+1)
	}

	p := NewOpenAIProvider(srv.URL, "k", "text-embedding-3-small", "gpt-4o-mini", 5*time.Second)
	resp, err := p.Embed(context.Background(), EmbedRequest{Texts: texts})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(resp.Embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Errorf("expected 3 batch calls for %d texts, got %d", len(texts), calls)
	}
	// Order must hold across batch boundaries too.
	for i, text := range texts {
		if resp.Embeddings[i][0] != float32(len(text)) {
			t.Fatalf("embedding[%d] does not correspond to its input text", i)
		}
	}
	if resp.Tokens != len(texts) {
		t.Errorf("expected %d total tokens, got %d", len(texts), resp.Tokens)
	}
}

func TestOpenAIProvider_Embed_BatchFailureAbortsAll(t *testing.T) {
	t.Parallel()

	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the second batch only.
		if atomic.AddInt64(&calls, 1) == 2 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		var req openAIEmbedRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		resp := openAIEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, openAIEmbedData{Index: i, Embedding: []float32{1}})
		}
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	texts := make([]string, embedBatchSize+1)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%d", i)
	}

	p := NewOpenAIProvider(srv.URL, "k", "m", "c", 5*time.Second)
	if _, err := p.Embed(context.Background(), EmbedRequest{Texts: texts}); err == nil {
		t.Fatal("expected error when one batch fails, got nil")
	}
}

func TestOpenAIProvider_Embed_Empty(t *testing.T) {
	t.Parallel()

	p := NewOpenAIProvider("http://unused", "k", "m", "c", time.Second)
	resp, err := p.Embed(context.Background(), EmbedRequest{Texts: nil})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(resp.Embeddings) != 0 {
		t.Errorf("expected no embeddings, got %d", len(resp.Embeddings))
	}
}

func TestOpenAIProvider_ChatCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			http.Error(w, "missing auth", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(openAIChatResponse{ //nolint:errcheck
			Choices: []openAIChatChoice{{
				Message:      openAIChatMessage{Role: "assistant", Content: "Hi there"},
				FinishReason: "stop",
			}},
			Usage: openAIUsage{TotalTokens: 12},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "secret", "m", "gpt-4o-mini", time.Second)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Hi there" {
		t.Errorf("expected content 'Hi there', got %q", resp.Content)
	}
	if resp.StopReason != "stop" {
		t.Errorf("expected stop reason 'stop', got %q", resp.StopReason)
	}
}

func TestOpenAIProvider_ChatCompletion_EmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIChatResponse{}) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "", "m", "c", time.Second)
	if _, err := p.ChatCompletion(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error for empty choices, got nil")
	}
}
