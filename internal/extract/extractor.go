// Package extract reads policy documents into pages of plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/policyrag/internal/models"
)

// Extractor extracts page text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its pages in order.
// PDFs yield one page per PDF page, spreadsheets one per sheet and
// presentations one per slide; other formats yield a single page.
func (e *Extractor) Extract(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts pages from content based on ext, which includes the leading dot.
// Unknown extensions are read as plain text. A panic in a format reader is
// returned as an error; the PDF reader panics on some malformed files.
func (e *Extractor) ExtractBytes(content []byte, ext string) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%s reader panic: %v", ext, r)
		}
	}()
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return single(extractDOCX(content))
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odt":
		return extractOpenDocument(content, "")
	case ".odp":
		return extractOpenDocument(content, odpPageTag)
	case ".ods":
		return extractOpenDocument(content, odsPageTag)
	default:
		return single(extractPlain(content))
	}
}

// Supported reports whether ext has a dedicated reader.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods", ".txt", ".md", ".rst":
		return true
	}
	return false
}

func single(text string, err error) ([]models.Page, error) {
	if err != nil {
		return nil, err
	}
	return []models.Page{{Number: 1, Text: text}}, nil
}
