package cli

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/felixgeelhaar/haven/internal/config"
	"github.com/felixgeelhaar/haven/internal/credential"
	"github.com/felixgeelhaar/haven/internal/guard"
	"github.com/felixgeelhaar/haven/internal/memory"
	"github.com/felixgeelhaar/haven/internal/metrics"
	"github.com/felixgeelhaar/haven/internal/observe"
	"github.com/felixgeelhaar/haven/internal/plugin"
	"github.com/felixgeelhaar/haven/internal/provider"
	"github.com/felixgeelhaar/haven/internal/responder"
	"github.com/felixgeelhaar/haven/internal/store"
)

// cliAgents are tried in order when the cli provider has no binary set.
var cliAgents = []string{"claude", "llm", "gemini", "codex"}

// App is the wired application shared by the serve, chat, status and
// memory commands.
type App struct {
	Config    *config.Config
	Observer  *observe.Observer
	DB        *store.SQLiteStore
	Vault     *credential.Vault
	Embedder  memory.Embedder
	Memory    *memory.Store
	Responder *responder.Responder
	Metrics   *metrics.Exporter

	closers []func()
}

// NewApp opens storage, builds the providers and the topic gate, replays
// the memory log and returns a ready Responder. On error everything opened
// so far is released.
func NewApp(ctx context.Context, cfg *config.Config, obs *observe.Observer) (app *App, err error) {
	a := &App{Config: cfg, Observer: obs}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DB, a.Vault, err = openVault(cfg)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = a.DB.Close() })

	chat, embed, err := a.providers(ctx)
	if err != nil {
		return nil, err
	}

	g, err := a.guard()
	if err != nil {
		return nil, err
	}

	index, err := memory.NewIndex(cfg.Memory.Index)
	if err != nil {
		return nil, err
	}

	a.Embedder, err = memory.NewCachedEmbedder(
		memory.WithTimeout(memory.EmbedderFunc(embed.Embed), cfg.Timeouts.Embed),
		cfg.Memory.CacheSize,
	)
	if err != nil {
		return nil, err
	}
	if c, ok := a.Embedder.(*memory.CachedEmbedder); ok {
		a.onClose(c.Close)
	}

	log, err := a.memoryLog()
	if err != nil {
		return nil, err
	}

	a.Memory, err = memory.Open(ctx, log, index, a.Embedder)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to open memory: %w", err)
	}
	a.onClose(func() { _ = a.Memory.Close() })

	a.Metrics = metrics.NewExporter(metrics.DefaultConfig())
	a.Metrics.TrackMemorySize(a.Memory.Len)

	a.Responder = responder.New(g, a.Memory, chat, obs, responder.Options{
		Model: cfg.Provider.ChatModel,
		Timeouts: responder.Timeouts{
			Storage:  cfg.Timeouts.Storage,
			Generate: cfg.Timeouts.Generate,
		},
	})
	a.Metrics.Attach(a.Responder.Events())

	obs.Log().Info().
		Str("chat", chat.Name()).
		Str("embed", embed.Name()).
		Str("backend", cfg.Memory.Backend).
		Str("index", cfg.Memory.Index).
		Int("memories", a.Memory.Len()).
		Msg("Haven ready")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// openVault opens the configuration database under the data directory.
func openVault(cfg *config.Config) (*store.SQLiteStore, *credential.Vault, error) {
	db, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init store: %w", err)
	}
	m, err := credential.NewManager()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init credential manager: %w", err)
	}
	return db, credential.NewVault(db, m), nil
}

// providers builds the chat and embedding backends. When both name the
// same backend a single instance serves both.
func (a *App) providers(ctx context.Context) (chat, embed provider.Provider, err error) {
	pc := a.Config.Provider
	chat, err = a.newProvider(ctx, pc.Chat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chat = provider.NewRateLimited(chat, pc.RateLimit, pc.Burst)
	if pc.Embed == "" || pc.Embed == pc.Chat {
		return chat, chat, nil
	}

	embed, err = a.newProvider(ctx, pc.Embed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	return chat, provider.NewRateLimited(embed, pc.RateLimit, pc.Burst), nil
}

func (a *App) newProvider(ctx context.Context, name string) (provider.Provider, error) {
	pc := a.Config.Provider
	opts := provider.Options{
		Name:       name,
		Model:      pc.ChatModel,
		EmbedModel: pc.EmbedModel,
		BaseURL:    pc.BaseURL,
		APIKey:     a.apiKey(ctx, name),
		Binary:     pc.Binary,
		Args:       pc.Args,
	}
	if name == "cli" && opts.Binary == "" {
		path, err := a.detectCLIAgent(ctx)
		if err != nil {
			return nil, err
		}
		opts.Binary = path
	}
	return provider.New(opts)
}

// apiKey resolves a provider credential from the configuration, then the
// vault. An empty result lets the provider fall back to its environment
// variable.
func (a *App) apiKey(ctx context.Context, name string) string {
	if a.Config.Provider.APIKey != "" {
		return a.Config.Provider.APIKey
	}
	for _, key := range []string{name + ".api_key", "provider.api_key"} {
		val, err := a.Vault.Get(ctx, key)
		if err != nil {
			a.Observer.Log().Warn().Str("key", key).Err(err).Msg("Ignoring unreadable credential")
			continue
		}
		if val != "" {
			return val
		}
	}
	return ""
}

// detectCLIAgent prefers a path stored with "config set provider.cli.path"
// and otherwise looks for a known agent on PATH.
func (a *App) detectCLIAgent(ctx context.Context) (string, error) {
	if path, err := a.Vault.Get(ctx, "provider.cli.path"); err == nil && path != "" {
		return path, nil
	}
	for _, t := range cliAgents {
		if path, err := exec.LookPath(t); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no local CLI agents detected (tried %v)", cliAgents)
}

// guard builds the topic gate. A configured threshold overrides the one in a
// vocabulary file; zero leaves it alone.
func (a *App) guard() (*guard.Guard, error) {
	tc := a.Config.Topic
	policy := guard.DefaultPolicy
	if tc.Vocabulary != "" {
		p, err := guard.LoadPolicy(tc.Vocabulary)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	if tc.Threshold > 0 {
		policy.Threshold = tc.Threshold
	}

	var scorer guard.Scorer
	if tc.ScorerPlugin != "" {
		s, stop, err := plugin.Open(tc.ScorerPlugin, a.Observer)
		if err != nil {
			return nil, err
		}
		a.onClose(stop)
		scorer = s
	}
	return guard.New(policy, scorer), nil
}

// memoryLog opens the durable log for the configured backend. The sqlite
// backend shares the configuration database unless memory.path points
// elsewhere.
func (a *App) memoryLog() (store.MemoryLog, error) {
	mc := a.Config.Memory
	switch mc.Backend {
	case config.BackendLog:
		return store.NewLogStore(mc.Path)
	default:
		if mc.Path == a.Config.DatabasePath() {
			return sharedLog{a.DB}, nil
		}
		return store.NewSQLiteStore(mc.Path)
	}
}

// sharedLog lends the configuration database to the memory store without
// handing over ownership.
type sharedLog struct {
	*store.SQLiteStore
}

func (sharedLog) Close() error { return nil }
