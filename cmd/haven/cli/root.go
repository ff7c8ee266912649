package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/felixgeelhaar/haven/internal/config"
	"github.com/felixgeelhaar/haven/internal/observe"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootOptions carries the persistent flags and the viper instance every
// subcommand resolves its configuration from.
type rootOptions struct {
	configFile string
	envFile    string
	verbose    bool
	jsonLogs   bool
	v          *viper.Viper
}

// NewRootCmd builds the command tree. Each call gets its own viper
// instance so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "haven",
		Short: "CBT companion with topic gating and conversational memory",
		Long: `Haven answers messages about mental well-being and cognitive behavioural
therapy. Every on-topic message is remembered and the closest past messages
are recalled as context for the reply. Off-topic messages are redirected.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Config file (default ~/.haven/config.yaml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&opts.jsonLogs, "json", false, "Write logs as JSON")
	pf.String("data-dir", "", "Data directory (default ~/.haven)")
	pf.StringP("provider", "p", "", "Chat provider (ollama, openai, gemini, anthropic, cli, stub)")
	pf.StringP("model", "m", "", "Chat model (default depends on provider)")
	bindFlag(opts.v, "data_dir", pf.Lookup("data-dir"))
	bindFlag(opts.v, "provider.chat", pf.Lookup("provider"))
	bindFlag(opts.v, "provider.chat_model", pf.Lookup("model"))

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newMemoryCmd(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// load resolves the configuration and the observer. Logs go to the
// command's stderr so stdout stays clean for command output.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *observe.Observer, error) {
	cfg, err := config.Load(o.v, config.Options{File: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return nil, nil, err
	}
	obs := observe.New(cmd.ErrOrStderr(), observe.Options{JSON: o.jsonLogs, Verbose: o.verbose})
	return cfg, obs, nil
}

// open loads the configuration and wires the full application.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command) (*App, error) {
	cfg, obs, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, obs)
}
