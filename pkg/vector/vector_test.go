package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chopralab/sciborg/pkg/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.VectorStoreConfig
		wantErr bool
	}{
		{"nil config", nil, true},
		{"chromem", &config.VectorStoreConfig{Type: "chromem"}, false},
		{"unknown", &config.VectorStoreConfig{Type: "pinecone"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if p != nil {
				p.Close()
			}
		})
	}
}

func TestChromemProvider_UpsertAndSearch(t *testing.T) {
	p, err := NewChromemProvider(&config.VectorStoreConfig{Type: "chromem"})
	if err != nil {
		t.Fatalf("NewChromemProvider() error = %v", err)
	}
	defer p.Close()

	ctx := context.Background()

	docs := []struct {
		id     string
		vector []float32
		text   string
	}{
		{"doc1", []float32{1, 0, 0}, "microwave synthesis protocol"},
		{"doc2", []float32{0, 1, 0}, "liquid handling guide"},
		{"doc3", []float32{0.9, 0.1, 0}, "microwave maintenance notes"},
	}

	for _, d := range docs {
		err := p.Upsert(ctx, "papers", d.id, d.vector, map[string]any{
			"content": d.text,
			"title":   d.id,
		})
		if err != nil {
			t.Fatalf("Upsert(%s) error = %v", d.id, err)
		}
	}

	results, err := p.Search(ctx, "papers", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc1" {
		t.Errorf("expected doc1 first, got %s", results[0].ID)
	}
	if results[0].Content != "microwave synthesis protocol" {
		t.Errorf("unexpected content: %q", results[0].Content)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not sorted by score")
	}
}

func TestChromemProvider_SearchWithFilter(t *testing.T) {
	p, _ := NewChromemProvider(&config.VectorStoreConfig{Type: "chromem"})
	defer p.Close()

	ctx := context.Background()

	p.Upsert(ctx, "docs", "a", []float32{1, 0}, map[string]any{"content": "alpha", "kind": "protocol"})
	p.Upsert(ctx, "docs", "b", []float32{1, 0}, map[string]any{"content": "beta", "kind": "note"})

	results, err := p.SearchWithFilter(ctx, "docs", []float32{1, 0}, 5, map[string]any{"kind": "note"})
	if err != nil {
		t.Fatalf("SearchWithFilter() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("unexpected filtered results: %+v", results)
	}
}

func TestChromemProvider_TopKClamped(t *testing.T) {
	p, _ := NewChromemProvider(&config.VectorStoreConfig{Type: "chromem"})
	defer p.Close()

	ctx := context.Background()
	p.Upsert(ctx, "docs", "only", []float32{1, 0}, map[string]any{"content": "one"})

	// Asking for more results than documents must not error.
	results, err := p.Search(ctx, "docs", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestChromemProvider_Delete(t *testing.T) {
	p, _ := NewChromemProvider(&config.VectorStoreConfig{Type: "chromem"})
	defer p.Close()

	ctx := context.Background()
	p.Upsert(ctx, "docs", "x", []float32{1, 0}, map[string]any{"content": "x"})
	p.Upsert(ctx, "docs", "y", []float32{0, 1}, map[string]any{"content": "y"})

	if err := p.Delete(ctx, "docs", "x"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	results, _ := p.Search(ctx, "docs", []float32{1, 0}, 5)
	for _, r := range results {
		if r.ID == "x" {
			t.Error("deleted document still returned")
		}
	}
}

func TestChromemProvider_DeleteCollection(t *testing.T) {
	p, _ := NewChromemProvider(&config.VectorStoreConfig{Type: "chromem"})
	defer p.Close()

	ctx := context.Background()
	p.Upsert(ctx, "temp", "x", []float32{1}, map[string]any{"content": "x"})

	if err := p.DeleteCollection(ctx, "temp"); err != nil {
		t.Fatalf("DeleteCollection() error = %v", err)
	}

	// A fresh, empty collection comes back after deletion.
	results, err := p.Search(ctx, "temp", []float32{1}, 5)
	if err != nil {
		t.Fatalf("Search() after delete error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty collection, got %d results", len(results))
	}
}

func TestChromemProvider_Persistence(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.VectorStoreConfig{Type: "chromem", PersistPath: dir}

	p, err := NewChromemProvider(cfg)
	if err != nil {
		t.Fatalf("NewChromemProvider() error = %v", err)
	}

	ctx := context.Background()
	if err := p.Upsert(ctx, "docs", "persisted", []float32{1, 0}, map[string]any{"content": "kept"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := filepath.Glob(filepath.Join(dir, "vectors.gob*")); err != nil {
		t.Fatalf("glob error: %v", err)
	}

	reopened, err := NewChromemProvider(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	results, err := reopened.Search(ctx, "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search() after reopen error = %v", err)
	}
	if len(results) != 1 || results[0].ID != "persisted" {
		t.Errorf("expected persisted document back, got %+v", results)
	}
}

func TestProviderRegistry(t *testing.T) {
	reg := NewProviderRegistry()

	p, err := reg.RegisterFromConfig("main", &config.VectorStoreConfig{Type: "chromem"})
	if err != nil {
		t.Fatalf("RegisterFromConfig() error = %v", err)
	}

	got, ok := reg.Get("main")
	if !ok || got != p {
		t.Error("expected registered provider back")
	}

	if _, err := reg.RegisterFromConfig("bad", &config.VectorStoreConfig{Type: "milvus"}); err == nil {
		t.Error("expected error for unknown type")
	}

	if err := reg.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
