package rag

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Document is a unit of content discovered from a data source.
type Document struct {
	// ID uniquely identifies the document (file path for directory sources).
	ID string

	// Content is the raw or extracted text content.
	Content string

	// Title for citations. Defaults to the file name.
	Title string

	// SourcePath is the path relative to the source root.
	SourcePath string

	// MimeType detected from the file extension.
	MimeType string

	// Size in bytes.
	Size int64

	// LastModified time, if known.
	LastModified time.Time

	// Metadata carries source-specific fields.
	Metadata map[string]any
}

// SearchResult is a retrieved chunk with its citation fields.
type SearchResult struct {
	ID      string
	Content string
	Score   float32

	// Source is the document path the chunk came from.
	Source string

	// Title of the source document.
	Title string

	// Page the chunk starts on. Zero when the source has no pages.
	Page int

	Metadata map[string]any
}

// DataSource supplies documents for indexing.
type DataSource interface {
	Type() string
	DiscoverDocuments(ctx context.Context) (<-chan Document, <-chan error)
	ReadDocument(ctx context.Context, id string) (*Document, error)
	Close() error
}

// FileFilter decides which files a source should index.
type FileFilter interface {
	ShouldInclude(path string) bool
	ShouldExclude(path string) bool
}

// PatternFilter implements FileFilter with include/exclude glob patterns.
// Exclude patterns also match bare directory names so entire trees can
// be pruned (".git", "node_modules").
type PatternFilter struct {
	sourcePath string
	include    []string
	exclude    []string
}

func NewPatternFilter(sourcePath string, include, exclude []string) *PatternFilter {
	return &PatternFilter{
		sourcePath: sourcePath,
		include:    include,
		exclude:    exclude,
	}
}

func (f *PatternFilter) ShouldInclude(path string) bool {
	if len(f.include) == 0 {
		return true
	}

	rel := f.relPath(path)
	base := filepath.Base(rel)

	for _, pattern := range f.include {
		if pattern == "*" {
			return true
		}
		if matched, err := filepath.Match(pattern, rel); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(strings.TrimPrefix(pattern, "**/"), base); err == nil && matched {
			return true
		}
	}

	return false
}

func (f *PatternFilter) ShouldExclude(path string) bool {
	rel := f.relPath(path)
	base := filepath.Base(rel)

	for _, pattern := range f.exclude {
		if matched, err := filepath.Match(pattern, rel); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(strings.TrimPrefix(pattern, "**/"), base); err == nil && matched {
			return true
		}
		// Bare names prune matching path segments anywhere in the tree.
		if !strings.ContainsAny(pattern, "*?[") {
			for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
				if part == pattern {
					return true
				}
			}
		}
	}

	return false
}

func (f *PatternFilter) relPath(path string) string {
	rel, err := filepath.Rel(f.sourcePath, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

var _ FileFilter = (*PatternFilter)(nil)

func detectMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}
