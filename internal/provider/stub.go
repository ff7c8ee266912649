package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
)

// StubDim is the embedding width produced by StubProvider.
const StubDim = 64

// StubProvider is an offline provider for tests and demos. Chat replays the
// queued Responses and then falls back to a fixed reply; Embed hashes
// character trigrams so similar texts land close together.
type StubProvider struct {
	Responses []Response
	Latency   time.Duration
	Err       error

	mu    sync.Mutex
	calls [][]Message
}

func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]Message(nil), messages...))

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &Response{
			Content: "Thank you for sharing. Let's look at that thought together.",
			Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
		}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

// Calls returns a copy of every message list Chat has received.
func (m *StubProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return StubEmbedding(text), nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

// StubEmbedding maps text to a unit vector of StubDim buckets filled by
// hashed character trigrams of the lower-cased, space-padded text.
func StubEmbedding(text string) []float32 {
	runes := []rune(" " + strings.ToLower(text) + " ")
	vec := make([]float32, StubDim)
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%StubDim]++
	}
	if len(runes) < 3 {
		vec[0] = 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
