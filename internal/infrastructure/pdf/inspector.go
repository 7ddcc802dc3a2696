// Package pdf inspects fetched bill documents.
package pdf

import (
	"errors"
	"fmt"

	"github.com/garyjia/eak-connector/internal/application/port"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrEmptyDocument is returned for empty content
var ErrEmptyDocument = errors.New("empty document")

// Inspector reads PDF metadata with mupdf
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new Inspector
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// PageCount opens the document from memory and returns its number of pages
func (i *Inspector) PageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, ErrEmptyDocument
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	i.logger.Debug("Inspected PDF", zap.Int("pages", pages), zap.Int("size", len(content)))
	return pages, nil
}

// Verify interface compliance
var _ port.PDFInspector = (*Inspector)(nil)
