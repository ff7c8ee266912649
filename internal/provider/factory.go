package provider

import (
	"fmt"
	"os"
	"strings"
)

// Options selects and configures one backend.
type Options struct {
	Name       string
	Model      string
	EmbedModel string
	BaseURL    string
	APIKey     string
	Binary     string
	Args       []string
}

// New builds the provider named by opts.Name. API keys fall back to the
// usual environment variables when opts.APIKey is empty.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(opts.Name) {
	case "", "ollama":
		return NewOllamaProvider(opts.BaseURL, opts.Model, opts.EmbedModel)
	case "openai":
		return NewOpenAIProvider(keyOr(opts.APIKey, "OPENAI_API_KEY"), opts.BaseURL, opts.Model, opts.EmbedModel)
	case "gemini":
		return NewGeminiProvider(keyOr(opts.APIKey, "GEMINI_API_KEY"), opts.Model, opts.EmbedModel)
	case "anthropic":
		p, err := NewAnthropicProvider(keyOr(opts.APIKey, "ANTHROPIC_API_KEY"), opts.Model)
		if err != nil {
			return nil, err
		}
		if opts.BaseURL != "" {
			p.SetBaseURL(opts.BaseURL)
		}
		return p, nil
	case "cli":
		return NewCLIProvider(opts.Binary, opts.Args)
	case "stub":
		return NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Name)
	}
}

func keyOr(key, env string) string {
	if key != "" {
		return key
	}
	return os.Getenv(env)
}
