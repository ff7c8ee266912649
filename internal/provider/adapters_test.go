package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
)

func TestAnthropicTurns(t *testing.T) {
	got := anthropicTurns([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: "tool", Content: "d"},
	})
	if len(got) != 3 {
		t.Fatalf("Expected 3 turns, got %+v", got)
	}
	if got[0].Content != "a\n\nb" || got[1].Role != RoleAssistant || got[2].Role != RoleUser {
		t.Errorf("Unexpected turns: %+v", got)
	}
}

func TestAnthropicErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("key", "")
	p.SetBaseURL(server.URL)
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "rate_limit_error") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("Expected the envelope message, got %v", err)
	}
}

func TestCLIProvider(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}
	p, err := NewCLIProvider(echo, []string{"-n"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "cli:echo" {
		t.Errorf("Expected 'cli:echo', got %q", p.Name())
	}

	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "old"},
		{Role: RoleUser, Content: "new"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "be kind\n\nnew" {
		t.Errorf("Expected system prompt and last turn, got %q", resp.Content)
	}

	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("Expected ErrEmbeddingsUnsupported, got %v", err)
	}
}

func TestCLIProvider_Failure(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	p, _ := NewCLIProvider(bin, nil)
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Error("Expected error from failing binary")
	}
}
