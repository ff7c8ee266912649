// Package observe bundles the structured logger and tracer shared by every
// haven component.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("haven")

// Options selects the log encoding and verbosity.
type Options struct {
	// JSON switches from console output to one JSON object per line.
	JSON bool
	// Verbose enables info and debug output. Otherwise only warnings and
	// errors are written.
	Verbose bool
}

// Observer handles logging and tracing.
type Observer struct {
	log *bolt.Logger
}

// New creates an Observer writing to out.
func New(out io.Writer, opts Options) *Observer {
	var l *bolt.Logger
	if opts.JSON {
		l = bolt.New(bolt.NewJSONHandler(out))
	} else {
		l = bolt.New(bolt.NewConsoleHandler(out))
	}
	if !opts.Verbose {
		l.SetLevel(bolt.WARN)
	}
	return &Observer{log: l}
}

// Discard returns an Observer that drops everything. Used by tests.
func Discard() *Observer {
	return New(io.Discard, Options{})
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// StartSpan starts a new OTel span.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Close flushes buffered output. bolt writes synchronously, so there is
// nothing to do yet.
func (o *Observer) Close() error {
	return nil
}
