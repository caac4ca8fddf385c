package main

import (
	"fmt"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/embedders"
	"github.com/chopralab/sciborg/pkg/rag"
	"github.com/chopralab/sciborg/pkg/vector"
)

// buildDocumentStore assembles the named document store from config,
// instantiating its embedder and vector store provider. The returned
// cleanup closes both.
func buildDocumentStore(cfg *config.Config, name string) (*rag.DocumentStore, func(), error) {
	storeCfg, ok := cfg.DocumentStores[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown document store %q", name)
	}

	embedderCfg := &config.EmbedderConfig{}
	if storeCfg.Embedder != "" {
		embedderCfg = cfg.Embedders[storeCfg.Embedder]
	}
	embedderCfg.SetDefaults()
	if err := embedderCfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("embedder config: %w", err)
	}
	embedder, err := embedders.NewEmbedder(embedderCfg)
	if err != nil {
		return nil, nil, err
	}

	vectorCfg := &config.VectorStoreConfig{}
	if storeCfg.VectorStore != "" {
		vectorCfg = cfg.VectorStores[storeCfg.VectorStore]
	}
	vectorCfg.SetDefaults()
	if err := vectorCfg.Validate(); err != nil {
		embedder.Close()
		return nil, nil, fmt.Errorf("vector store config: %w", err)
	}
	provider, err := vector.NewProvider(vectorCfg)
	if err != nil {
		embedder.Close()
		return nil, nil, err
	}

	store, err := rag.NewDocumentStore(name, storeCfg, embedder, provider)
	if err != nil {
		embedder.Close()
		provider.Close()
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		embedder.Close()
		provider.Close()
	}
	return store, cleanup, nil
}
