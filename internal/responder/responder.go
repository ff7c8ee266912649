// Package responder runs one chat turn: gate the latest message, remember
// it, recall similar messages and generate a reply with them as context.
package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/observe"
	"github.com/felixgeelhaar/haven/internal/provider"
)

// Memory is the subset of memory.Store the responder needs.
type Memory interface {
	Insert(ctx context.Context, text string) error
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Timeouts bound the external calls of one request. Zero means no limit.
type Timeouts struct {
	Storage  time.Duration
	Generate time.Duration
}

type Options struct {
	// Model is reported by CheckHealth. Defaults to provider.ModelOf.
	Model    string
	Timeouts Timeouts
	Bus      *EventBus
}

// Health is the result of CheckHealth.
type Health struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Detail string `json:"message,omitempty"`
}

// Health statuses.
const (
	StatusConnected = "connected"
	StatusError     = "error"
)

// MaxMessageLength caps the latest message, in runes. Longer messages are
// rejected before the topic check runs.
const MaxMessageLength = 4000

// Responder is safe for concurrent use.
type Responder struct {
	guard    *guard.Guard
	memory   Memory
	chat     provider.Provider
	observe  *observe.Observer
	bus      *EventBus
	model    string
	timeouts Timeouts
}

func New(g *guard.Guard, m Memory, p provider.Provider, o *observe.Observer, opts Options) *Responder {
	bus := opts.Bus
	if bus == nil {
		bus = NewEventBus()
	}
	model := opts.Model
	if model == "" {
		model = provider.ModelOf(p)
	}
	return &Responder{
		guard:    g,
		memory:   m,
		chat:     p,
		observe:  o,
		bus:      bus,
		model:    model,
		timeouts: opts.Timeouts,
	}
}

// Events returns the bus every outcome is published on.
func (r *Responder) Events() *EventBus {
	return r.bus
}

// Handle answers the last message of conversation. Off-topic messages get
// guard.RedirectMessage and leave memory untouched. Failures are *Error.
func (r *Responder) Handle(ctx context.Context, conversation []provider.Message) (string, error) {
	ctx, span := r.observe.StartSpan(ctx, "Responder.Handle")
	defer span.End()

	reqID := uuid.NewString()
	start := time.Now()
	log := r.observe.Log().With().Str("request", reqID).Logger()

	fail := func(err *Error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Kind.Error())
		log.Error().Str("op", err.Op).Err(err.Err).Msg("chat request failed")
		r.bus.PublishWithData(EventRequestFailed, reqID, map[string]interface{}{
			"op":   err.Op,
			"kind": err.Kind.Error(),
		})
		return "", err
	}

	if len(conversation) == 0 {
		return fail(newError(ErrInvalidInput, "extract", errors.New("conversation is empty")))
	}
	message := conversation[len(conversation)-1].Content
	if strings.TrimSpace(message) == "" {
		return fail(newError(ErrInvalidInput, "extract", errors.New("message content is empty")))
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return fail(newError(ErrInvalidInput, "extract",
			fmt.Errorf("message is %d characters, limit is %d", n, MaxMessageLength)))
	}

	if v := r.guard.Check(message); v != nil {
		log.Info().Str("rule", v.Rule).Msg("message outside supported topics")
		r.bus.PublishWithData(EventOffTopic, reqID, nil)
		return v.Message, nil
	}

	if err := r.remember(ctx, message); err != nil {
		return fail(newError(ErrStorage, "remember", err))
	}
	r.bus.PublishWithData(EventMemoryStored, reqID, nil)

	passages, err := r.recall(ctx, message)
	if err != nil {
		return fail(newError(ErrStorage, "recall", err))
	}
	log.Info().Int("passages", len(passages)).Msg("recalled context")
	r.bus.PublishWithData(EventContextRecalled, reqID, map[string]interface{}{"count": len(passages)})

	reply, err := r.generate(ctx, ComposeInput(message, passages))
	if err != nil {
		return fail(newError(ErrGeneration, "generate", err))
	}

	elapsed := time.Since(start)
	log.Info().Int("ms", int(elapsed.Milliseconds())).Msg("response generated")
	r.bus.PublishWithData(EventResponseGenerated, reqID, map[string]interface{}{"duration": elapsed})
	return reply, nil
}

func (r *Responder) remember(ctx context.Context, message string) error {
	ctx, span := r.observe.StartSpan(ctx, "Responder.remember")
	defer span.End()
	ctx, cancel := withTimeout(ctx, r.timeouts.Storage)
	defer cancel()
	return r.memory.Insert(ctx, message)
}

func (r *Responder) recall(ctx context.Context, message string) ([]string, error) {
	ctx, span := r.observe.StartSpan(ctx, "Responder.recall")
	defer span.End()
	ctx, cancel := withTimeout(ctx, r.timeouts.Storage)
	defer cancel()
	return r.memory.Search(ctx, message, ContextSize)
}

func (r *Responder) generate(ctx context.Context, input string) (string, error) {
	ctx, span := r.observe.StartSpan(ctx, "Responder.generate")
	defer span.End()
	ctx, cancel := withTimeout(ctx, r.timeouts.Generate)
	defer cancel()
	return provider.Generate(ctx, r.chat, SystemInstruction, input)
}

// CheckHealth pings the chat model with a trivial prompt. It never fails;
// problems are reported in Health.
func (r *Responder) CheckHealth(ctx context.Context) Health {
	ctx, span := r.observe.StartSpan(ctx, "Responder.CheckHealth")
	defer span.End()

	if _, err := r.generate(ctx, "Hello"); err != nil {
		r.observe.Log().Warn().Err(err).Msg("health check failed")
		return Health{Status: StatusError, Detail: err.Error()}
	}
	return Health{Status: StatusConnected, Model: r.model}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
