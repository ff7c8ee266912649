// Package config resolves haven's settings from defaults, a YAML file, a
// .env file, HAVEN_* environment variables and bound CLI flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "HAVEN"

// Memory backends.
const (
	BackendSQLite = "sqlite"
	BackendLog    = "log"
)

type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Memory   MemoryConfig   `mapstructure:"memory" yaml:"memory"`
	Topic    TopicConfig    `mapstructure:"topic" yaml:"topic"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ProviderConfig selects the chat and embedding backends independently.
type ProviderConfig struct {
	Chat       string   `mapstructure:"chat" yaml:"chat"`
	ChatModel  string   `mapstructure:"chat_model" yaml:"chat_model"`
	Embed      string   `mapstructure:"embed" yaml:"embed"`
	EmbedModel string   `mapstructure:"embed_model" yaml:"embed_model"`
	BaseURL    string   `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string   `mapstructure:"api_key" yaml:"api_key"`
	Binary     string   `mapstructure:"binary" yaml:"binary"`
	Args       []string `mapstructure:"args" yaml:"args"`
	RateLimit  float64  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst      int      `mapstructure:"burst" yaml:"burst"`
}

type MemoryConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Path      string `mapstructure:"path" yaml:"path"`
	Index     string `mapstructure:"index" yaml:"index"`
	CacheSize int64  `mapstructure:"cache_size" yaml:"cache_size"`
}

// TopicConfig selects the topic gate. A zero Threshold keeps the
// vocabulary file's threshold, or the built-in default without one.
type TopicConfig struct {
	Threshold    int    `mapstructure:"threshold" yaml:"threshold"`
	Vocabulary   string `mapstructure:"vocabulary" yaml:"vocabulary"`
	ScorerPlugin string `mapstructure:"scorer_plugin" yaml:"scorer_plugin"`
}

type TimeoutConfig struct {
	Embed    time.Duration `mapstructure:"embed" yaml:"embed"`
	Generate time.Duration `mapstructure:"generate" yaml:"generate"`
	Storage  time.Duration `mapstructure:"storage" yaml:"storage"`
}

// SetDefaults registers every key so that environment variables can
// override any of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.haven")
	v.SetDefault("server.addr", "127.0.0.1:8000")

	v.SetDefault("provider.chat", "ollama")
	v.SetDefault("provider.chat_model", "")
	v.SetDefault("provider.embed", "ollama")
	v.SetDefault("provider.embed_model", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.binary", "")
	v.SetDefault("provider.args", []string{})
	v.SetDefault("provider.rate_limit", 0.0)
	v.SetDefault("provider.burst", 1)

	v.SetDefault("memory.backend", BackendSQLite)
	v.SetDefault("memory.path", "")
	v.SetDefault("memory.index", "hnsw")
	v.SetDefault("memory.cache_size", 1024)

	v.SetDefault("topic.threshold", 0)
	v.SetDefault("topic.vocabulary", "")
	v.SetDefault("topic.scorer_plugin", "")

	v.SetDefault("timeouts.embed", 30*time.Second)
	v.SetDefault("timeouts.generate", 120*time.Second)
	v.SetDefault("timeouts.storage", 60*time.Second)
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When empty, config.yaml in the
	// default data directory is used if it exists.
	File string
	// EnvFile is loaded into the process environment without overriding
	// variables that are already set. Defaults to ".env".
	EnvFile string
}

// Load resolves the configuration into v and decodes it.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ExpandHome(v.GetString("data_dir")))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DataDir = ExpandHome(c.DataDir)
	c.Memory.Backend = strings.ToLower(c.Memory.Backend)
	c.Memory.Index = strings.ToLower(c.Memory.Index)
	if c.Memory.Path == "" {
		c.Memory.Path = c.DefaultMemoryPath()
	}
	c.Memory.Path = ExpandHome(c.Memory.Path)
	c.Topic.Vocabulary = ExpandHome(c.Topic.Vocabulary)
	c.Topic.ScorerPlugin = ExpandHome(c.Topic.ScorerPlugin)
}

// DefaultMemoryPath is where the configured backend keeps its log.
func (c *Config) DefaultMemoryPath() string {
	if c.Memory.Backend == BackendLog {
		return filepath.Join(c.DataDir, "memories.jsonl")
	}
	return c.DatabasePath()
}

// DatabasePath is the SQLite file holding configuration (and memories for
// the sqlite backend).
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "haven.db")
}

func (c *Config) Validate() error {
	switch c.Memory.Backend {
	case BackendSQLite, BackendLog:
	default:
		return fmt.Errorf("memory.backend must be %q or %q, got %q", BackendSQLite, BackendLog, c.Memory.Backend)
	}
	switch c.Memory.Index {
	case "hnsw", "exact":
	default:
		return fmt.Errorf("memory.index must be \"hnsw\" or \"exact\", got %q", c.Memory.Index)
	}
	if c.Topic.Threshold < 0 || c.Topic.Threshold > 100 {
		return fmt.Errorf("topic.threshold must be within 0..100, got %d", c.Topic.Threshold)
	}
	if c.Provider.RateLimit < 0 {
		return fmt.Errorf("provider.rate_limit must not be negative")
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
