package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles Chat and Embed through a shared token bucket.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p. A non-positive rps disables limiting and returns p
// unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string {
	return r.inner.Name()
}

func (r *RateLimited) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", r.inner.Name(), err)
	}
	return r.inner.Chat(ctx, messages)
}

func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", r.inner.Name(), err)
	}
	return r.inner.Embed(ctx, text)
}

func (r *RateLimited) Model() string {
	return ModelOf(r.inner)
}
