package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// CLIProvider shells out to a local agent binary (claude, llm, ...) that
// takes the prompt as its final argument and prints the reply on stdout.
// Only the system prompt and the latest turn are sent.
type CLIProvider struct {
	binary string
	args   []string
}

func NewCLIProvider(binary string, args []string) (*CLIProvider, error) {
	if binary == "" {
		return nil, fmt.Errorf("binary path is required for CLI provider")
	}
	return &CLIProvider{binary: binary, args: append([]string(nil), args...)}, nil
}

// Name is "cli:" followed by the binary's base name.
func (p *CLIProvider) Name() string {
	return "cli:" + filepath.Base(p.binary)
}

func (p *CLIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	cmd := exec.CommandContext(ctx, p.binary, append(p.args[:len(p.args):len(p.args)], cliPrompt(messages))...) // #nosec G204
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", p.Name(), ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w: %s", p.Name(), err, strings.TrimSpace(stderr.String()))
	}

	reply := strings.TrimSpace(stdout.String())
	return &Response{
		Content: reply,
		Usage:   Usage{TotalTokens: len(strings.Fields(reply))},
	}, nil
}

func cliPrompt(messages []Message) string {
	system, turns := splitSystem(messages)
	var last string
	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
	}
	if system == "" {
		return last
	}
	return system + "\n\n" + last
}

func (p *CLIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("cli: %w", ErrEmbeddingsUnsupported)
}
