package vector

import (
	"context"
	"fmt"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/registry"
)

// Result is a single similarity search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Provider is a vector store backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection string, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Name() string
	Close() error
}

// NewProvider creates a vector provider from configuration.
func NewProvider(cfg *config.VectorStoreConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store configuration is required")
	}

	switch cfg.Type {
	case "chromem":
		return NewChromemProvider(cfg)
	case "qdrant":
		return NewQdrantProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown vector store type: %q", cfg.Type)
	}
}

// ProviderRegistry holds named vector providers.
type ProviderRegistry struct {
	registry.Registry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		Registry: registry.NewBaseRegistry[Provider](),
	}
}

// RegisterFromConfig builds a provider from cfg and registers it under name.
func (r *ProviderRegistry) RegisterFromConfig(name string, cfg *config.VectorStoreConfig) (Provider, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store %q: %w", name, err)
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
			firstErr = fmt.Errorf("failed to close vector store %q: %w", name, err)
		}
	}
	return firstErr
}
