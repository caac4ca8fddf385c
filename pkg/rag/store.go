package rag

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/embedders"
	"github.com/chopralab/sciborg/pkg/vector"
)

// DocumentStore ties together a data source, content extraction,
// chunking, embedding and a vector collection. It is the unit the
// agent's document search tool and the answerer run against.
type DocumentStore struct {
	name       string
	source     DataSource
	extractor  *ExtractorRegistry
	chunker    Chunker
	embedder   embedders.Embedder
	provider   vector.Provider
	collection string
	topK       int
	threshold  float32

	watchEnabled bool
	watcher      *Watcher
	watchCancel  context.CancelFunc

	mu          sync.RWMutex
	indexedDocs map[string]time.Time
}

// NewDocumentStore builds a store from configuration and its resolved
// dependencies.
func NewDocumentStore(name string, cfg *config.DocumentStoreConfig, embedder embedders.Embedder, provider vector.Provider) (*DocumentStore, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if cfg == nil || cfg.Source == nil {
		return nil, fmt.Errorf("source configuration is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("vector provider is required")
	}

	source, err := NewDirectorySourceFromConfig(cfg.Source)
	if err != nil {
		return nil, err
	}

	chunker, err := NewChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	collection := cfg.Collection
	if collection == "" {
		collection = name
	}

	topK := 10
	var threshold float32
	if cfg.Search != nil {
		if cfg.Search.TopK > 0 {
			topK = cfg.Search.TopK
		}
		threshold = cfg.Search.Threshold
	}

	return &DocumentStore{
		name:         name,
		source:       source,
		extractor:    NewExtractorRegistry(),
		chunker:      chunker,
		embedder:     embedder,
		provider:     provider,
		collection:   collection,
		topK:         topK,
		threshold:    threshold,
		watchEnabled: cfg.Watch,
		indexedDocs:  make(map[string]time.Time),
	}, nil
}

func (s *DocumentStore) Name() string       { return s.name }
func (s *DocumentStore) Collection() string { return s.collection }

// Index discovers all documents from the source and indexes them with a
// bounded worker pool.
func (s *DocumentStore) Index(ctx context.Context) error {
	start := time.Now()
	slog.Info("Starting document indexing", "store", s.name)

	docChan, errChan := s.source.DiscoverDocuments(ctx)

	var discoveryErrs []error
	var errMu sync.Mutex
	go func() {
		for err := range errChan {
			errMu.Lock()
			discoveryErrs = append(discoveryErrs, err)
			errMu.Unlock()
			slog.Warn("Error during document discovery", "store", s.name, "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var indexed, failed int64
	var countMu sync.Mutex

	for doc := range docChan {
		doc := doc
		g.Go(func() error {
			if err := s.indexDocument(gctx, doc); err != nil {
				slog.Warn("Failed to index document", "document", doc.ID, "error", err)
				countMu.Lock()
				failed++
				countMu.Unlock()
				return nil
			}
			countMu.Lock()
			indexed++
			countMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Document indexing complete",
		"store", s.name,
		"indexed", indexed,
		"failed", failed,
		"elapsed", time.Since(start))

	return nil
}

// indexDocument extracts, chunks, embeds and upserts one document,
// replacing any chunks from a previous version.
func (s *DocumentStore) indexDocument(ctx context.Context, doc Document) error {
	extracted, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if extracted.Content == "" {
		return nil
	}

	title := extracted.Title
	if title == "" {
		title = doc.Title
	}

	chunks, err := s.chunker.Chunk(extracted.Content)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	// Drop chunks from an earlier version of the document before
	// writing the new ones.
	if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{"doc_id": doc.ID}); err != nil {
		slog.Debug("Failed to delete previous chunks", "document", doc.ID, "error", err)
	}

	for i, chunk := range chunks {
		metadata := map[string]any{
			"content":     chunk.Content,
			"doc_id":      doc.ID,
			"source":      doc.SourcePath,
			"title":       title,
			"chunk_index": chunk.Index,
			"chunk_total": chunk.Total,
		}
		if page := pageForOffset(extracted.Content, chunk.StartByte); page > 0 {
			metadata["page"] = page
		}

		if err := s.provider.Upsert(ctx, s.collection, chunkID(doc.ID, chunk.Index), vectors[i], metadata); err != nil {
			return fmt.Errorf("upsert failed: %w", err)
		}
	}

	s.mu.Lock()
	s.indexedDocs[doc.ID] = time.Now()
	s.mu.Unlock()

	return nil
}

// chunkID derives a stable UUID so re-indexing a document overwrites its
// old chunks instead of duplicating them.
func chunkID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", docID, index))).String()
}

// Search embeds the query and returns the closest chunks above the
// configured score threshold.
func (s *DocumentStore) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = s.topK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.provider.Search(ctx, s.collection, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if s.threshold > 0 && hit.Score < s.threshold {
			continue
		}
		results = append(results, toSearchResult(hit))
	}

	return results, nil
}

func toSearchResult(hit vector.Result) SearchResult {
	result := SearchResult{
		ID:       hit.ID,
		Content:  hit.Content,
		Score:    hit.Score,
		Metadata: hit.Metadata,
	}

	if result.Content == "" {
		if c, ok := hit.Metadata["content"].(string); ok {
			result.Content = c
		}
	}
	if src, ok := hit.Metadata["source"].(string); ok {
		result.Source = src
	}
	if title, ok := hit.Metadata["title"].(string); ok {
		result.Title = title
	}
	result.Page = metadataInt(hit.Metadata["page"])

	return result
}

// metadataInt reads a page number back out of provider metadata, which
// may have been stringified by the store backend.
func metadataInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

// DeleteDocument removes every chunk of a document from the collection.
func (s *DocumentStore) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{"doc_id": docID}); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}

	s.mu.Lock()
	delete(s.indexedDocs, docID)
	s.mu.Unlock()

	return nil
}

// RefreshDocument re-reads and re-indexes a single document by path.
func (s *DocumentStore) RefreshDocument(ctx context.Context, docID string) error {
	doc, err := s.source.ReadDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	return s.indexDocument(ctx, *doc)
}

// IndexedCount returns the number of documents indexed in this session.
func (s *DocumentStore) IndexedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexedDocs)
}

// StartWatching re-indexes documents as they change on disk. No-op when
// watching is disabled in config.
func (s *DocumentStore) StartWatching(ctx context.Context) error {
	if !s.watchEnabled {
		return nil
	}

	dirSource, ok := s.source.(*DirectorySource)
	if !ok {
		return fmt.Errorf("watching requires a directory source")
	}

	s.mu.Lock()
	if s.watchCancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("already watching")
	}

	watcher, err := NewWatcher(dirSource.BasePath(), dirSource.Filter())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.watchCancel = cancel
	s.mu.Unlock()

	events, err := watcher.Start(watchCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	go func() {
		for event := range events {
			switch event.Type {
			case WatchEventRemove:
				if err := s.DeleteDocument(watchCtx, event.Path); err != nil {
					slog.Warn("Failed to delete document on change", "document", event.Path, "error", err)
				}
			default:
				if err := s.RefreshDocument(watchCtx, event.Path); err != nil {
					slog.Warn("Failed to re-index document on change", "document", event.Path, "error", err)
				}
			}
		}
	}()

	slog.Info("Started watching for document changes", "store", s.name)
	return nil
}

// StopWatching stops the file watcher if it is running.
func (s *DocumentStore) StopWatching() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			slog.Warn("Error stopping watcher", "store", s.name, "error", err)
		}
		s.watcher = nil
	}
}

// Clear removes the whole collection.
func (s *DocumentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.indexedDocs = make(map[string]time.Time)
	s.mu.Unlock()

	return s.provider.DeleteCollection(ctx, s.collection)
}

// Close stops watching and releases the source.
func (s *DocumentStore) Close() error {
	s.StopWatching()
	return s.source.Close()
}
