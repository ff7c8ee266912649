package store

import (
	"context"
	"time"
)

// Record is one remembered message with its embedding.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryLog is the durable, append-only history behind the vector index.
// LoadMemories returns records in append order.
type MemoryLog interface {
	AppendMemory(ctx context.Context, rec Record) error
	LoadMemories(ctx context.Context) ([]Record, error)
	Close() error
}

// ConfigStore persists key/value settings.
type ConfigStore interface {
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
}
