package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hello", "role": "assistant"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("test-key", server.URL, "gpt-4", "")
	if err != nil {
		t.Fatalf("NewOpenAIProvider failed: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Expected 'openai', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Expected 'hello', got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "embedding": [0.25, 0.5, 0.75], "index": 0}],
			"model": "text-embedding-3-small"
		}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "", "")
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.5 {
		t.Errorf("Unexpected embedding %v", vec)
	}
}

func TestOllamaProvider(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat":
			_, _ = w.Write([]byte(`{"message": {"role": "assistant", "content": "hi from ollama"}, "done": true, "eval_count": 10, "prompt_eval_count": 5}`))
		case "/api/embeddings":
			_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3, 0.4]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "", "")
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected 'ollama', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hi from ollama" {
		t.Errorf("Expected 'hi from ollama', got '%s'", resp.Content)
	}
	if gotModel != defaultOllamaChatModel {
		t.Errorf("Expected chat model %q, got %q", defaultOllamaChatModel, gotModel)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}

	vec, err := p.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("Expected 4 dimensions, got %d", len(vec))
	}
	if gotModel != defaultOllamaEmbedModel {
		t.Errorf("Expected embed model %q, got %q", defaultOllamaEmbedModel, gotModel)
	}
}

func TestOllamaProvider_HostFromEnv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": {"content": "from env"}, "done": true}`))
	}))
	defer server.Close()

	t.Setenv("OLLAMA_HOST", server.URL)

	p, _ := NewOllamaProvider("", "llama3", "")
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "from env" {
		t.Errorf("Expected 'from env', got '%s'", resp.Content)
	}
}

func TestAnthropicProvider(t *testing.T) {
	var req anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"content": [{"type": "text", "text": "hello from claude"}],
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("test-key", "claude-3")
	p.SetBaseURL(server.URL)
	if p.Name() != "anthropic" {
		t.Errorf("Expected 'anthropic', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello from claude" {
		t.Errorf("Expected 'hello from claude', got '%s'", resp.Content)
	}
	if req.System != "be kind" {
		t.Errorf("Expected system prompt out of band, got %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Errorf("Expected a single user message, got %+v", req.Messages)
	}

	if _, err := p.Embed(context.Background(), "hi"); !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("Expected ErrEmbeddingsUnsupported, got %v", err)
	}
}

func TestGeminiProvider_Name(t *testing.T) {
	// genai.NewClient does not connect eagerly, so Name() is testable offline.
	p, err := NewGeminiProvider("fake-key", "gemini-pro", "")
	if err != nil {
		t.Logf("Skipping Gemini Name test due to client init error: %v", err)
		return
	}
	if p.Name() != "gemini" {
		t.Errorf("Expected 'gemini', got '%s'", p.Name())
	}
}

func TestProvider_Init(t *testing.T) {
	if _, err := NewOpenAIProvider("", "", "", ""); err == nil {
		t.Error("Expected error for empty openai key")
	}
	if _, err := NewAnthropicProvider("", ""); err == nil {
		t.Error("Expected error for empty anthropic key")
	}
	if _, err := NewGeminiProvider("", "", ""); err == nil {
		t.Error("Expected error for empty gemini key")
	}
	if _, err := NewCLIProvider("", nil); err == nil {
		t.Error("Expected error for empty binary path")
	}
}

func TestProvider_Errors(t *testing.T) {
	t.Run("OpenAI Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(500)
		}))
		defer server.Close()
		p, _ := NewOpenAIProvider("key", server.URL, "", "")
		_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		if err == nil {
			t.Error("Expected error")
		}
	})

	t.Run("Anthropic Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(401)
		}))
		defer server.Close()
		p, _ := NewAnthropicProvider("key", "")
		p.SetBaseURL(server.URL)
		_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		if err == nil {
			t.Error("Expected error")
		}
	})
}

func TestStubProvider(t *testing.T) {
	p := NewStubProvider()
	if p.Name() != "stub" {
		t.Errorf("Expected 'stub', got '%s'", p.Name())
	}
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content == "" {
		t.Error("Expected content")
	}

	p.Responses = []Response{{Content: "queued"}}
	resp, _ = p.Chat(context.Background(), []Message{{Role: "user", Content: "again"}})
	if resp.Content != "queued" {
		t.Errorf("Expected queued response, got %q", resp.Content)
	}
	if calls := p.Calls(); len(calls) != 2 || calls[1][0].Content != "again" {
		t.Errorf("Unexpected recorded calls %+v", calls)
	}
}

func TestStubProvider_Timeout(t *testing.T) {
	p := NewStubProvider()
	p.Latency = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Chat(ctx, []Message{{Content: "hi"}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestStubEmbedding(t *testing.T) {
	a := StubEmbedding("I feel anxious today")
	b := StubEmbedding("I feel anxious today")
	c := StubEmbedding("the quarterly tax report")

	if len(a) != StubDim {
		t.Fatalf("Expected %d dimensions, got %d", StubDim, len(a))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("Expected deterministic embedding")
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("Expected unit vector, got squared norm %f", norm)
	}

	near := dot(a, StubEmbedding("I feel anxious"))
	far := dot(a, c)
	if near <= far {
		t.Errorf("Expected similar text to score higher: near=%f far=%f", near, far)
	}

	if v := StubEmbedding(""); len(v) != StubDim {
		t.Errorf("Expected fixed width for empty text, got %d", len(v))
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestGenerate(t *testing.T) {
	p := NewStubProvider()
	p.Responses = []Response{{Content: "ok"}}

	out, err := Generate(context.Background(), p, "sys", "input")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "ok" {
		t.Errorf("Expected 'ok', got %q", out)
	}
	call := p.Calls()[0]
	if len(call) != 2 || call[0].Role != RoleSystem || call[1].Content != "input" {
		t.Errorf("Unexpected messages %+v", call)
	}

	p.Responses = []Response{{Content: "   "}}
	if _, err := Generate(context.Background(), p, "sys", "input"); err == nil {
		t.Error("Expected error for empty completion")
	}
}

func TestNew(t *testing.T) {
	p, err := New(Options{Name: "stub"})
	if err != nil || p.Name() != "stub" {
		t.Fatalf("Expected stub provider, got %v, %v", p, err)
	}
	p, err = New(Options{Name: "ollama", BaseURL: "http://127.0.0.1:1"})
	if err != nil || p.Name() != "ollama" {
		t.Fatalf("Expected ollama provider, got %v, %v", p, err)
	}
	if _, err := New(Options{Name: "carrier-pigeon"}); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("Expected unknown provider error, got %v", err)
	}
}

func TestRateLimited(t *testing.T) {
	stub := NewStubProvider()
	if got := NewRateLimited(stub, 0, 0); got != Provider(stub) {
		t.Error("Expected unlimited provider to be returned unchanged")
	}

	limited := NewRateLimited(stub, 1, 1)
	if limited.Name() != "stub" {
		t.Errorf("Expected wrapped name 'stub', got %q", limited.Name())
	}
	if _, err := limited.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first call should pass the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Chat(ctx, []Message{{Role: "user", Content: "second"}}); err == nil {
		t.Error("Expected second call to be throttled past the deadline")
	}
}

func TestModelOf(t *testing.T) {
	p, _ := NewOllamaProvider("http://127.0.0.1:1", "", "")
	if got := ModelOf(p); got != defaultOllamaChatModel {
		t.Errorf("Expected %q, got %q", defaultOllamaChatModel, got)
	}
	if got := ModelOf(NewRateLimited(p, 5, 1)); got != defaultOllamaChatModel {
		t.Errorf("Expected rate limiter to forward the model, got %q", got)
	}
	if got := ModelOf(NewStubProvider()); got != "stub" {
		t.Errorf("Expected name fallback 'stub', got %q", got)
	}
}
