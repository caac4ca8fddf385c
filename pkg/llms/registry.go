package llms

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/registry"
)

// NewProvider builds a provider from configuration.
func NewProvider(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.LLMProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case config.LLMProviderOpenAI:
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// ProviderRegistry holds named LLM providers.
type ProviderRegistry struct {
	registry.Registry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		Registry: registry.NewBaseRegistry[Provider](),
	}
}

// RegisterFromConfig builds a provider from cfg and registers it under name.
func (r *ProviderRegistry) RegisterFromConfig(name string, cfg *config.LLMConfig) (Provider, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider %q: %w", name, err)
	}
	if err := r.Register(name, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// Close closes all registered providers.
func (r *ProviderRegistry) Close() error {
	var firstErr error
	for _, name := range r.Names() {
		provider, ok := r.Get(name)
		if !ok {
			continue
		}
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close provider %q: %w", name, err)
		}
	}
	return firstErr
}
