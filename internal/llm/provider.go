// Package llm contains the generative-text provider clients.
package llm

import "context"

// Provider produces text for a prompt. Implementations must honor context
// cancellation; calls are expected to block for non-trivial wall-clock time
// and are bounded by the caller's deadline.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GenerateFunc adapts a function to the Provider interface.
type GenerateFunc struct {
	ProviderName string
	Func         func(ctx context.Context, prompt string, maxTokens int) (string, error)
}

func (g GenerateFunc) Name() string { return g.ProviderName }

func (g GenerateFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return g.Func(ctx, prompt, maxTokens)
}
