package embedders

import (
	"context"
	"fmt"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/registry"
)

// Embedder converts text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetDimension() int
	GetModelName() string
	Close() error
}

// NewEmbedder builds an embedder from configuration.
func NewEmbedder(cfg *config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}
}

// EmbedderRegistry holds named embedders.
type EmbedderRegistry struct {
	registry.Registry[Embedder]
}

func NewEmbedderRegistry() *EmbedderRegistry {
	return &EmbedderRegistry{
		Registry: registry.NewBaseRegistry[Embedder](),
	}
}

// RegisterFromConfig builds an embedder from cfg and registers it under name.
func (r *EmbedderRegistry) RegisterFromConfig(name string, cfg *config.EmbedderConfig) (Embedder, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder %q: %w", name, err)
	}
	if err := r.Register(name, embedder); err != nil {
		return nil, err
	}
	return embedder, nil
}
