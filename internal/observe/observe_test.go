package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNew_Console(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, Options{Verbose: true})

	obs.Log().Info().Str("component", "memory").Msg("store opened")

	out := buf.String()
	if !strings.Contains(out, "store opened") {
		t.Errorf("expected output to contain 'store opened', got %q", out)
	}
}

func TestNew_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, Options{JSON: true, Verbose: true})

	obs.Log().Info().Int("records", 3).Msg("replayed")

	out := buf.String()
	if !strings.Contains(out, "replayed") {
		t.Errorf("expected output to contain 'replayed', got %q", out)
	}
	if !strings.Contains(out, `"records"`) {
		t.Errorf("expected JSON field 'records', got %q", out)
	}
}

func TestNew_QuietDropsInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, Options{})

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered when not verbose, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warning in output, got %q", out)
	}
}

func TestObserver_StartSpan(t *testing.T) {
	obs := Discard()

	ctx, span := obs.StartSpan(context.Background(), "test-span")
	if ctx == nil {
		t.Fatal("expected non-nil context from StartSpan")
	}
	if span == nil {
		t.Fatal("expected non-nil span from StartSpan")
	}
	span.End()

	if err := obs.Close(); err != nil {
		t.Errorf("expected nil error from Close, got %v", err)
	}
}
