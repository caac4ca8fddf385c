package rag

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/vector"
)

// fakeEmbedder hashes text into a fixed-size vector. Identical text
// yields identical vectors, so exact-match queries score highest.
type fakeEmbedder struct{}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r) / 1000
	}
	return vec, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *fakeEmbedder) GetDimension() int    { return 4 }
func (e *fakeEmbedder) GetModelName() string { return "fake" }
func (e *fakeEmbedder) Close() error         { return nil }

// fakeVectorProvider records upserts and answers searches by cosine
// similarity over the stored vectors.
type fakeVectorProvider struct {
	mu     sync.Mutex
	points map[string]fakePoint
}

type fakePoint struct {
	vector   []float32
	metadata map[string]any
}

func newFakeVectorProvider() *fakeVectorProvider {
	return &fakeVectorProvider{points: make(map[string]fakePoint)}
}

func (p *fakeVectorProvider) Upsert(_ context.Context, collection, id string, vec []float32, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points[collection+"/"+id] = fakePoint{vector: vec, metadata: metadata}
	return nil
}

func (p *fakeVectorProvider) Search(ctx context.Context, collection string, vec []float32, topK int) ([]vector.Result, error) {
	return p.SearchWithFilter(ctx, collection, vec, topK, nil)
}

func (p *fakeVectorProvider) SearchWithFilter(_ context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]vector.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var results []vector.Result
	for key, point := range p.points {
		if !strings.HasPrefix(key, collection+"/") {
			continue
		}
		if !matchesFilter(point.metadata, filter) {
			continue
		}
		results = append(results, vector.Result{
			ID:       strings.TrimPrefix(key, collection+"/"),
			Score:    cosine(vec, point.vector),
			Metadata: point.metadata,
		})
	}

	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[i].Score {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (p *fakeVectorProvider) Delete(_ context.Context, collection, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.points, collection+"/"+id)
	return nil
}

func (p *fakeVectorProvider) DeleteByFilter(_ context.Context, collection string, filter map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, point := range p.points {
		if strings.HasPrefix(key, collection+"/") && matchesFilter(point.metadata, filter) {
			delete(p.points, key)
		}
	}
	return nil
}

func (p *fakeVectorProvider) CreateCollection(context.Context, string, int) error { return nil }

func (p *fakeVectorProvider) DeleteCollection(_ context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.points {
		if strings.HasPrefix(key, collection+"/") {
			delete(p.points, key)
		}
	}
	return nil
}

func (p *fakeVectorProvider) Name() string { return "fake" }
func (p *fakeVectorProvider) Close() error { return nil }

func matchesFilter(metadata, filter map[string]any) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (sqrt32(normA) * sqrt32(normB))
}

func sqrt32(v float32) float32 {
	// Newton iterations are plenty for test scoring.
	guess := v
	for i := 0; i < 20; i++ {
		guess = (guess + v/guess) / 2
	}
	return guess
}

func newTestStore(t *testing.T, dir string) (*DocumentStore, *fakeVectorProvider) {
	t.Helper()

	provider := newFakeVectorProvider()
	store, err := NewDocumentStore("docs", &config.DocumentStoreConfig{
		Source: &config.DocumentSourceConfig{
			Type:    "directory",
			Path:    dir,
			Include: []string{"**/*.md", "**/*.txt"},
		},
		Chunking: &config.ChunkingConfig{Strategy: "simple", Size: 2000},
	}, &fakeEmbedder{}, provider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store, provider
}

func TestDocumentStoreIndexAndSearch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "synthesis.md", "The microwave synthesizer runs at 150 C and 5 atm.")
	writeTestFile(t, dir, "handler.md", "The liquid handler transfers samples between wells.")

	store, provider := newTestStore(t, dir)
	defer store.Close()

	ctx := context.Background()
	if err := store.Index(ctx); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if store.IndexedCount() != 2 {
		t.Errorf("indexed count = %d, want 2", store.IndexedCount())
	}

	results, err := store.Search(ctx, "The microwave synthesizer runs at 150 C and 5 atm.", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "synthesis.md" {
		t.Errorf("top result title = %q, want synthesis.md", results[0].Title)
	}
	if !strings.Contains(results[0].Content, "microwave synthesizer") {
		t.Errorf("result content not populated: %q", results[0].Content)
	}
	if results[0].Source == "" {
		t.Error("result source not populated")
	}

	// Point IDs are derived from doc and chunk, so provider state maps
	// one point per chunk.
	if len(provider.points) != 2 {
		t.Errorf("expected 2 points, got %d", len(provider.points))
	}
}

func TestDocumentStoreReindexReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.md", "original content")

	store, provider := newTestStore(t, dir)
	defer store.Close()

	ctx := context.Background()
	if err := store.Index(ctx); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if len(provider.points) != 1 {
		t.Fatalf("expected 1 point after first index, got %d", len(provider.points))
	}

	writeTestFile(t, dir, "doc.md", "updated content")
	if err := store.RefreshDocument(ctx, path); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if len(provider.points) != 1 {
		t.Errorf("expected 1 point after re-index, got %d", len(provider.points))
	}
	for _, point := range provider.points {
		if c, _ := point.metadata["content"].(string); c != "updated content" {
			t.Errorf("chunk content = %q, want updated content", c)
		}
	}
}

func TestDocumentStoreDeleteDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "doc.md", "some content")

	store, provider := newTestStore(t, dir)
	defer store.Close()

	ctx := context.Background()
	if err := store.Index(ctx); err != nil {
		t.Fatalf("index failed: %v", err)
	}
	if err := store.DeleteDocument(ctx, path); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(provider.points) != 0 {
		t.Errorf("expected 0 points after delete, got %d", len(provider.points))
	}
	if store.IndexedCount() != 0 {
		t.Errorf("indexed count = %d, want 0", store.IndexedCount())
	}
}

func TestDocumentStoreSearchThreshold(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "doc.md", "microwave protocol details")

	provider := newFakeVectorProvider()
	store, err := NewDocumentStore("docs", &config.DocumentStoreConfig{
		Source:   &config.DocumentSourceConfig{Type: "directory", Path: dir},
		Chunking: &config.ChunkingConfig{Strategy: "simple", Size: 2000},
		Search:   &config.DocumentSearchConfig{TopK: 5, Threshold: 0.999},
	}, &fakeEmbedder{}, provider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Index(ctx); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	// A dissimilar query scores below the threshold and returns nothing.
	results, err := store.Search(ctx, "zzzz", 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected threshold to filter results, got %d", len(results))
	}

	// The exact text scores 1.0 and passes.
	results, err = store.Search(ctx, "microwave protocol details", 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected exact match to pass threshold, got %d results", len(results))
	}
}

// fakeLLM returns a canned answer and records the prompt it saw.
type fakeLLM struct {
	lastMessages []llms.Message
	answer       string
}

func (f *fakeLLM) Generate(_ context.Context, messages []llms.Message, _ []llms.ToolDefinition) (*llms.Response, error) {
	f.lastMessages = messages
	return &llms.Response{Text: f.answer}, nil
}

func (f *fakeLLM) GenerateStructured(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition, _ *llms.StructuredOutputConfig) (*llms.Response, error) {
	return f.Generate(ctx, messages, tools)
}

func (f *fakeLLM) GetModelName() string    { return "fake" }
func (f *fakeLLM) GetMaxTokens() int       { return 1024 }
func (f *fakeLLM) GetTemperature() float64 { return 0 }
func (f *fakeLLM) Close() error            { return nil }

func TestAnswererCitations(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "vessel.md", "The reaction vessel holds 10 mL at up to 10 atm.")

	store, _ := newTestStore(t, dir)
	defer store.Close()

	ctx := context.Background()
	if err := store.Index(ctx); err != nil {
		t.Fatalf("index failed: %v", err)
	}

	llm := &fakeLLM{answer: "The vessel holds 10 mL [1]."}
	answerer := NewAnswerer(store, llm)

	answer, err := answerer.Answer(ctx, "The reaction vessel holds 10 mL at up to 10 atm.")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if answer.Text != "The vessel holds 10 mL [1]." {
		t.Errorf("answer text = %q", answer.Text)
	}
	if len(answer.Citations) == 0 {
		t.Fatal("expected citations")
	}
	if answer.Citations[0].Title != "vessel.md" {
		t.Errorf("citation title = %q, want vessel.md", answer.Citations[0].Title)
	}

	if len(llm.lastMessages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(llm.lastMessages))
	}
	prompt := llm.lastMessages[1].Content
	if !strings.Contains(prompt, "[1] vessel.md") {
		t.Errorf("prompt missing numbered context block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "reaction vessel") {
		t.Errorf("prompt missing retrieved content:\n%s", prompt)
	}
}

func TestAnswererNoResults(t *testing.T) {
	dir := t.TempDir()

	store, _ := newTestStore(t, dir)
	defer store.Close()

	answerer := NewAnswerer(store, &fakeLLM{answer: "unused"})
	answer, err := answerer.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if !strings.Contains(answer.Text, "No relevant documents") {
		t.Errorf("answer = %q", answer.Text)
	}
}
