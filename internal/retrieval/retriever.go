// Package retrieval embeds a query, finds the nearest policy chunks and
// formats them with their source documents into a context blob.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/embedding"
	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/internal/vector"
)

// Messages returned in place of a context blob. They are valid context, not errors.
const (
	MsgEmptyQuery     = "Error: Query must be a non-empty string."
	MsgNoResults      = "No relevant documents found."
	MsgNoValidResults = "No valid documents found."
)

// DefaultK is the number of chunks retrieved per query.
const DefaultK = 5

const hitSeparator = "\n\n"

// Retrieval is the outcome of one retrieval: the resolved query, the context
// blob handed to generation and the hits it was built from.
type Retrieval struct {
	Query   string       `json:"query"`
	Context string       `json:"context"`
	Hits    []models.Hit `json:"hits"`
}

// Retriever looks up policy chunks for a query.
type Retriever struct {
	store      vector.Store
	embedder   embedding.Embedder
	collection string
	k          int
	logger     *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever over collection returning up to k hits (DefaultK if k <= 0).
func NewRetriever(store vector.Store, embedder embedding.Embedder, collection string, k int, opts ...Option) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	r := &Retriever{store: store, embedder: embedder, collection: collection, k: k, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// K returns the number of hits requested per query.
func (r *Retriever) K() int {
	return r.k
}

// Retrieve decodes raw (plain text or a {"query": ...} object) and returns the
// context blob: hits formatted as "{text}\n(Source: {document})", nearest
// first, separated by blank lines. Empty input and empty results produce
// fixed messages instead of errors. Embedding and store failures are returned.
func (r *Retriever) Retrieve(ctx context.Context, raw string) (string, error) {
	res, err := r.RetrieveHits(ctx, raw)
	if err != nil {
		return "", err
	}
	return res.Context, nil
}

// RetrieveHits is Retrieve that also returns the structured hits.
func (r *Retriever) RetrieveHits(ctx context.Context, raw string) (*Retrieval, error) {
	input := models.ParseQueryInput(raw)
	query, ok := input.Resolve()
	if !ok {
		r.logger.Info("rejected empty query", zap.String("kind", input.Kind.String()))
		return &Retrieval{Context: MsgEmptyQuery}, nil
	}
	r.logger.Info("retrieving policy chunks", zap.String("query", query), zap.String("kind", input.Kind.String()))

	neighbors, err := r.nearest(ctx, query)
	if err != nil {
		return nil, err
	}
	res := &Retrieval{Query: query}
	if len(neighbors) == 0 {
		res.Context = MsgNoResults
		return res, nil
	}
	res.Hits = r.validHits(neighbors)
	if len(res.Hits) == 0 {
		res.Context = MsgNoValidResults
		return res, nil
	}
	res.Context = FormatContext(res.Hits)
	r.logger.Debug("retrieved chunks", zap.Int("hits", len(res.Hits)), zap.Int("candidates", len(neighbors)))
	return res, nil
}

// Search returns the hits for query, nearest first. Hits with incomplete metadata are dropped.
func (r *Retriever) Search(ctx context.Context, query string) ([]models.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	neighbors, err := r.nearest(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.validHits(neighbors), nil
}

func (r *Retriever) nearest(ctx context.Context, query string) ([]vector.Neighbor, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	neighbors, err := r.store.QueryNearest(ctx, r.collection, vec, r.k)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collection, err)
	}
	return neighbors, nil
}

func (r *Retriever) validHits(neighbors []vector.Neighbor) []models.Hit {
	hits := make([]models.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		text, okText := n.Metadata[models.MetaText]
		source, okSource := n.Metadata[models.MetaSourceDocument]
		if !okText || !okSource {
			r.logger.Warn("skipping hit with incomplete metadata", zap.String("id", n.ID))
			continue
		}
		hits = append(hits, models.Hit{ID: n.ID, Text: text, SourceDocument: source, Distance: n.Distance})
	}
	return hits
}

// FormatContext renders hits as the context blob passed to generation.
func FormatContext(hits []models.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("%s\n(Source: %s)", h.Text, h.SourceDocument)
	}
	return strings.Join(blocks, hitSeparator)
}
