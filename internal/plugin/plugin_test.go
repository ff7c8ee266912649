package plugin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/observe"
	hcplugin "github.com/hashicorp/go-plugin"
)

func dispenseScorer(t *testing.T, impl guard.Scorer) guard.Scorer {
	t.Helper()

	client, _ := hcplugin.TestPluginRPCConn(t, map[string]hcplugin.Plugin{
		ScorerName: &ScorerPlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(ScorerName)
	if err != nil {
		t.Fatalf("Dispense failed: %v", err)
	}
	scorer, ok := raw.(guard.Scorer)
	if !ok {
		t.Fatalf("expected guard.Scorer, got %T", raw)
	}
	return scorer
}

func TestScorerRPC_PartialRatio(t *testing.T) {
	scorer := dispenseScorer(t, guard.PartialRatio{})

	if got := scorer.Score("abc", "xxabcxx"); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
	if got := scorer.Score("anxiety", "anxious"); got != 57 {
		t.Errorf("Expected 57, got %d", got)
	}
}

func TestScorerRPC_DrivesGuard(t *testing.T) {
	always := guard.ScorerFunc(func(a, b string) int { return 100 })
	scorer := dispenseScorer(t, always)

	g := guard.New(guard.Policy{Keywords: []string{"grief"}}, scorer)
	if !g.IsOnTopic("completely unrelated") {
		t.Error("Expected remote scorer to accept the message")
	}
}

func TestScorerRPC_FallsBackWhenPluginDies(t *testing.T) {
	client, _ := hcplugin.TestPluginRPCConn(t, map[string]hcplugin.Plugin{
		ScorerName: &ScorerPlugin{Impl: guard.PartialRatio{}},
	}, nil)
	raw, err := client.Dispense(ScorerName)
	if err != nil {
		t.Fatalf("Dispense failed: %v", err)
	}
	scorer := raw.(*ScorerRPC)
	var logs bytes.Buffer
	scorer.SetObserver(observe.New(&logs, observe.Options{JSON: true}))

	g := guard.New(guard.Policy{Keywords: []string{"depression"}}, scorer)
	if !g.IsOnTopic("my depresion is bad") {
		t.Fatal("Expected fuzzy match through the plugin")
	}

	client.Close()
	if !g.IsOnTopic("my depresion is bad") {
		t.Error("Expected the local scorer to keep the fuzzy match")
	}
	if got := strings.Count(logs.String(), "scorer plugin call failed"); got != 1 {
		t.Errorf("Expected one failure log line, got %d in %q", got, logs.String())
	}
}

func TestOpen_MissingBinary(t *testing.T) {
	if _, _, err := Open("/nonexistent/haven-scorer", observe.Discard()); err == nil {
		t.Error("Expected error for missing plugin binary")
	}
}
