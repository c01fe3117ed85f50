// Package models defines the core data structures shared by ingestion, retrieval and generation.
package models

import "fmt"

// Metadata keys written on chunk and marker records.
const (
	MetaText           = "text"
	MetaSourceDocument = "source_document"
	MetaDocumentID     = "document_id"
	MetaSHA256         = "sha256"
)

// Page is the text of one page (or sheet, or slide) of a parsed document.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is a source file read once per ingestion run. It is never stored.
type Document struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Pages []Page `json:"pages"`
}

// Text concatenates the page texts, one page per line.
func (d *Document) Text() string {
	switch len(d.Pages) {
	case 0:
		return ""
	case 1:
		return d.Pages[0].Text
	}
	n := len(d.Pages) - 1
	for _, p := range d.Pages {
		n += len(p.Text)
	}
	b := make([]byte, 0, n)
	for i, p := range d.Pages {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, p.Text...)
	}
	return string(b)
}

// Chunk is a contiguous text window of a document.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
}

// ChunkID returns the record id for the chunk at index within documentID.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// Metadata returns the metadata stored alongside the chunk's vector.
func (c *Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaText:           c.Text,
		MetaSourceDocument: c.DocumentID,
	}
}
