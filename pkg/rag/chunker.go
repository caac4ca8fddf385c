package rag

import (
	"fmt"
	"strings"

	"github.com/chopralab/sciborg/pkg/config"
)

// Chunk is a slice of a document ready for embedding.
type Chunk struct {
	Content   string
	StartByte int
	EndByte   int
	Index     int
	Total     int
}

// Chunker splits document content into chunks.
type Chunker interface {
	Chunk(content string) ([]Chunk, error)
	Strategy() string
}

// NewChunker builds a chunker from configuration.
func NewChunker(cfg *config.ChunkingConfig) (Chunker, error) {
	c := config.ChunkingConfig{}
	if cfg != nil {
		c = *cfg
	}
	c.SetDefaults()

	switch c.Strategy {
	case "simple":
		return &SimpleChunker{size: c.Size}, nil
	case "overlapping":
		overlap := c.Overlap
		if overlap <= 0 {
			overlap = c.Size / 5
		}
		return &OverlappingChunker{size: c.Size, overlap: overlap}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %q", c.Strategy)
	}
}

// SimpleChunker groups whole lines into chunks of roughly the configured
// size. Chunks never split mid-line.
type SimpleChunker struct {
	size int
}

func (c *SimpleChunker) Strategy() string { return "simple" }

func (c *SimpleChunker) Chunk(content string) ([]Chunk, error) {
	if len(content) <= c.size {
		return singleChunk(content), nil
	}

	var chunks []Chunk
	var current strings.Builder
	chunkStart := 0
	offset := 0

	for _, line := range strings.Split(content, "\n") {
		lineLen := len(line) + 1

		if current.Len() > 0 && current.Len()+lineLen > c.size {
			chunks = append(chunks, Chunk{
				Content:   content[chunkStart:offset],
				StartByte: chunkStart,
				EndByte:   offset,
				Index:     len(chunks),
			})
			current.Reset()
			chunkStart = offset
		}

		current.WriteString(line)
		current.WriteString("\n")
		offset += lineLen
	}

	if current.Len() > 0 {
		chunks = append(chunks, Chunk{
			Content:   content[chunkStart:],
			StartByte: chunkStart,
			EndByte:   len(content),
			Index:     len(chunks),
		})
	}

	return finishChunks(chunks), nil
}

// OverlappingChunker carries a tail of each chunk into the next one so
// content spanning a boundary stays retrievable.
type OverlappingChunker struct {
	size    int
	overlap int
}

func (c *OverlappingChunker) Strategy() string { return "overlapping" }

func (c *OverlappingChunker) Chunk(content string) ([]Chunk, error) {
	if len(content) <= c.size {
		return singleChunk(content), nil
	}

	lines := strings.Split(content, "\n")

	var chunks []Chunk
	var current strings.Builder
	chunkStart := 0
	offset := 0

	for i, line := range lines {
		lineLen := len(line) + 1

		current.WriteString(line)
		current.WriteString("\n")

		if current.Len() >= c.size {
			end := offset + lineLen
			if end > len(content) {
				end = len(content)
			}
			chunks = append(chunks, Chunk{
				Content:   content[chunkStart:end],
				StartByte: chunkStart,
				EndByte:   end,
				Index:     len(chunks),
			})

			// Collect trailing lines up to the overlap budget to seed
			// the next chunk.
			var overlapLines []string
			overlapSize := 0
			for j := i; j >= 0 && overlapSize < c.overlap; j-- {
				overlapLine := lines[j] + "\n"
				overlapSize += len(overlapLine)
				overlapLines = append([]string{lines[j]}, overlapLines...)
			}

			current.Reset()
			if len(overlapLines) > 0 {
				current.WriteString(strings.Join(overlapLines, "\n"))
				current.WriteString("\n")
			}
			chunkStart = end - current.Len()
			if chunkStart < 0 {
				chunkStart = 0
			}
		}

		offset += lineLen
	}

	// The remainder is only worth keeping if it holds more than the
	// overlap already emitted.
	if current.Len() > 0 && (len(chunks) == 0 || current.Len() > c.overlap+1) {
		chunks = append(chunks, Chunk{
			Content:   content[chunkStart:],
			StartByte: chunkStart,
			EndByte:   len(content),
			Index:     len(chunks),
		})
	}

	return finishChunks(chunks), nil
}

func singleChunk(content string) []Chunk {
	return []Chunk{{
		Content: content,
		EndByte: len(content),
		Total:   1,
	}}
}

func finishChunks(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}
