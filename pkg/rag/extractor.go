package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ExtractedContent is the result of content extraction.
type ExtractedContent struct {
	Content   string
	Title     string
	Pages     int
	Extractor string
}

// ContentExtractor turns a document into indexable text.
type ContentExtractor interface {
	CanExtract(doc Document) bool
	Extract(ctx context.Context, doc Document) (*ExtractedContent, error)
	Name() string
}

// ExtractorRegistry tries registered extractors in order and falls back
// to treating the content as plain text.
type ExtractorRegistry struct {
	extractors []ContentExtractor
}

func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: []ContentExtractor{
			&pdfExtractor{},
			&docxExtractor{},
		},
	}
}

// Register adds a custom extractor, tried before the built-in ones.
func (r *ExtractorRegistry) Register(e ContentExtractor) {
	r.extractors = append([]ContentExtractor{e}, r.extractors...)
}

func (r *ExtractorRegistry) Extract(ctx context.Context, doc Document) (*ExtractedContent, error) {
	for _, e := range r.extractors {
		if e.CanExtract(doc) {
			return e.Extract(ctx, doc)
		}
	}

	// Plain text passthrough.
	title := doc.Title
	if title == "" {
		title = filepath.Base(doc.ID)
	}
	return &ExtractedContent{
		Content:   doc.Content,
		Title:     title,
		Extractor: "text",
	}, nil
}

// pageMarker labels page boundaries in extracted PDF text so chunk
// citations can name the page they start on.
var pageMarkerRe = regexp.MustCompile(`(?m)^--- Page (\d+) ---$`)

// pageForOffset returns the page number in effect at the given byte
// offset of extracted content, or 0 if no markers precede it.
func pageForOffset(content string, offset int) int {
	page := 0
	for _, loc := range pageMarkerRe.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > offset {
			break
		}
		if n, err := strconv.Atoi(content[loc[2]:loc[3]]); err == nil {
			page = n
		}
	}
	return page
}

type pdfExtractor struct{}

func (e *pdfExtractor) Name() string { return "pdf" }

func (e *pdfExtractor) CanExtract(doc Document) bool {
	return strings.ToLower(filepath.Ext(doc.ID)) == ".pdf"
}

func (e *pdfExtractor) Extract(ctx context.Context, doc Document) (*ExtractedContent, error) {
	file, err := os.Open(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n(extraction failed: %v)", pageNum, err))
			continue
		}

		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	return &ExtractedContent{
		Content:   strings.Join(parts, "\n\n"),
		Title:     filepath.Base(doc.ID),
		Pages:     totalPages,
		Extractor: "pdf",
	}, nil
}

type docxExtractor struct{}

func (e *docxExtractor) Name() string { return "docx" }

func (e *docxExtractor) CanExtract(doc Document) bool {
	return strings.ToLower(filepath.Ext(doc.ID)) == ".docx"
}

func (e *docxExtractor) Extract(ctx context.Context, doc Document) (*ExtractedContent, error) {
	d, err := docx.ReadDocxFile(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer d.Close()

	content := d.Editable().GetContent()

	return &ExtractedContent{
		Content:   stripDocxTags(content),
		Title:     filepath.Base(doc.ID),
		Extractor: "docx",
	}, nil
}

// stripDocxTags removes the WordprocessingML markup GetContent leaves in,
// keeping paragraph breaks.
var docxTagRe = regexp.MustCompile(`<[^>]+>`)

func stripDocxTags(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = docxTagRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
