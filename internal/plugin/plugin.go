// Package plugin lets the topic gate's similarity scorer run in a separate
// process, so the fuzzy-matching algorithm can be replaced without rebuilding
// haven. Plugins speak hashicorp/go-plugin's net/rpc protocol.
package plugin

import (
	"fmt"
	"net/rpc"
	"os/exec"
	"sync/atomic"

	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/observe"
	hcplugin "github.com/hashicorp/go-plugin"
)

// ScorerName is the key the scorer is dispensed under.
const ScorerName = "scorer"

// HandshakeConfig is used to handshake between host and plugin.
var HandshakeConfig = hcplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "HAVEN_PLUGIN_MAGIC_COOKIE",
	MagicCookieValue: "haven-scorer",
}

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]hcplugin.Plugin{
	ScorerName: &ScorerPlugin{},
}

// ScoreArgs is the RPC request for a single comparison.
type ScoreArgs struct {
	A string
	B string
}

// ScorerRPC is the host-side guard.Scorer that forwards to the plugin.
// While the plugin is unreachable it scores locally with Fallback.
type ScorerRPC struct {
	client   *rpc.Client
	fallback guard.Scorer
	observe  *observe.Observer
	degraded atomic.Bool
}

// SetObserver sets where plugin failures are logged.
func (s *ScorerRPC) SetObserver(o *observe.Observer) {
	s.observe = o
}

// Score implements guard.Scorer. The switch to and from the local scorer
// is logged once per transition.
func (s *ScorerRPC) Score(a, b string) int {
	var resp int
	if err := s.client.Call("Plugin.Score", ScoreArgs{A: a, B: b}, &resp); err != nil {
		if s.degraded.CompareAndSwap(false, true) {
			s.observe.Log().Error().Err(err).Msg("scorer plugin call failed, scoring locally")
		}
		return s.fallback.Score(a, b)
	}
	if s.degraded.CompareAndSwap(true, false) {
		s.observe.Log().Info().Msg("scorer plugin reachable again")
	}
	return resp
}

// ScorerRPCServer runs inside the plugin process.
type ScorerRPCServer struct {
	Impl guard.Scorer
}

// Score is the net/rpc entry point.
func (s *ScorerRPCServer) Score(args ScoreArgs, resp *int) error {
	*resp = s.Impl.Score(args.A, args.B)
	return nil
}

// ScorerPlugin implements hcplugin.Plugin for guard.Scorer.
type ScorerPlugin struct {
	Impl guard.Scorer
}

func (p *ScorerPlugin) Server(*hcplugin.MuxBroker) (interface{}, error) {
	return &ScorerRPCServer{Impl: p.Impl}, nil
}

func (ScorerPlugin) Client(b *hcplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ScorerRPC{client: c, fallback: guard.PartialRatio{}, observe: observe.Discard()}, nil
}

// Serve runs s as a plugin. It blocks until the host disconnects.
func Serve(s guard.Scorer) {
	hcplugin.Serve(&hcplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]hcplugin.Plugin{
			ScorerName: &ScorerPlugin{Impl: s},
		},
	})
}

// Open launches the plugin binary at path and returns its scorer together
// with a function that stops the plugin process. Call failures are logged
// to o.
func Open(path string, o *observe.Observer) (guard.Scorer, func(), error) {
	client := hcplugin.NewClient(&hcplugin.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path), // #nosec G204
		AllowedProtocols: []hcplugin.Protocol{hcplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to start scorer plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(ScorerName)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense scorer: %w", err)
	}

	scorer, ok := raw.(*ScorerRPC)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s does not implement a scorer", path)
	}
	scorer.SetObserver(o)
	return scorer, client.Kill, nil
}
