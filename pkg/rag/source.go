package rag

import (
	"context"
	"os"
	"path/filepath"

	"github.com/chopralab/sciborg/pkg/config"
)

// DirectorySource discovers documents on the local filesystem.
type DirectorySource struct {
	basePath    string
	filter      FileFilter
	maxFileSize int64
}

// NewDirectorySource creates a directory-backed data source.
func NewDirectorySource(basePath string, filter FileFilter, maxFileSize int64) *DirectorySource {
	return &DirectorySource{
		basePath:    basePath,
		filter:      filter,
		maxFileSize: maxFileSize,
	}
}

// NewDirectorySourceFromConfig creates a directory source from config.
func NewDirectorySourceFromConfig(cfg *config.DocumentSourceConfig) (*DirectorySource, error) {
	filter := NewPatternFilter(cfg.Path, cfg.Include, cfg.Exclude)
	return NewDirectorySource(cfg.Path, filter, cfg.MaxFileSize), nil
}

func (ds *DirectorySource) Type() string {
	return "directory"
}

// DiscoverDocuments walks the source directory and streams documents
// through the returned channel. Binary formats (PDF, DOCX) are sent
// without content; extraction fills it in later.
func (ds *DirectorySource) DiscoverDocuments(ctx context.Context) (<-chan Document, <-chan error) {
	docChan := make(chan Document, 100)
	errChan := make(chan error, 10)

	go func() {
		defer close(docChan)
		defer close(errChan)

		err := filepath.Walk(ds.basePath, func(path string, info os.FileInfo, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				select {
				case errChan <- err:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}

			if info.IsDir() {
				if ds.filter != nil && ds.filter.ShouldExclude(path) {
					return filepath.SkipDir
				}
				return nil
			}

			if info.Size() == 0 {
				return nil
			}
			if ds.maxFileSize > 0 && info.Size() > ds.maxFileSize {
				return nil
			}

			if ds.filter != nil {
				if ds.filter.ShouldExclude(path) || !ds.filter.ShouldInclude(path) {
					return nil
				}
			}

			doc, err := ds.readFile(path, info)
			if err != nil {
				select {
				case errChan <- err:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}

			select {
			case docChan <- *doc:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})

		if err != nil && err != context.Canceled {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	return docChan, errChan
}

// ReadDocument retrieves a single document by its ID (file path).
func (ds *DirectorySource) ReadDocument(ctx context.Context, id string) (*Document, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, err
	}
	return ds.readFile(id, info)
}

func (ds *DirectorySource) readFile(path string, info os.FileInfo) (*Document, error) {
	relPath, _ := filepath.Rel(ds.basePath, path)
	mimeType := detectMimeType(path)

	doc := &Document{
		ID:           path,
		Title:        info.Name(),
		SourcePath:   relPath,
		MimeType:     mimeType,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Metadata: map[string]any{
			"path":     path,
			"rel_path": relPath,
			"name":     info.Name(),
		},
	}

	// Plain text formats are read here; binary formats are left for the
	// extractors, which operate on the file path.
	if mimeType != "application/pdf" && filepath.Ext(path) != ".docx" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc.Content = string(content)
	}

	return doc, nil
}

func (ds *DirectorySource) Close() error {
	return nil
}

func (ds *DirectorySource) BasePath() string {
	return ds.basePath
}

func (ds *DirectorySource) Filter() FileFilter {
	return ds.filter
}

var _ DataSource = (*DirectorySource)(nil)
