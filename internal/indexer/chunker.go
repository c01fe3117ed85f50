// Package indexer segments documents and ingests them into the vector store.
package indexer

import (
	"fmt"

	"github.com/hyperjump/policyrag/internal/models"
)

// Segment splits text into windows of chunkSize characters (Unicode code points),
// each starting chunkSize-overlap characters after the previous one. The last
// window may be shorter; segmentation stops once a window reaches the end.
func Segment(text string, chunkSize, overlap int) ([]string, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out, nil
}

func validateWindow(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrConfiguration, chunkSize, overlap)
	}
	return nil
}

// Chunker splits document text into chunks with deterministic ids.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap, in characters.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validateWindow(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into chunks of docID, numbered from zero.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	// Parameters were validated by NewChunker.
	windows, _ := Segment(text, c.chunkSize, c.chunkOverlap)
	chunks := make([]models.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = models.Chunk{
			ID:            models.ChunkID(docID, i),
			DocumentID:    docID,
			SequenceIndex: i,
			Text:          w,
		}
	}
	return chunks
}
