package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/embedding"
	"github.com/hyperjump/policyrag/internal/extract"
	"github.com/hyperjump/policyrag/internal/fileid"
	"github.com/hyperjump/policyrag/internal/metrics"
	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/internal/vector"
	"github.com/hyperjump/policyrag/pkg/utils"
)

// markerVector is stored with every processed-document marker. Only the
// marker's existence and metadata matter.
var markerVector = []float32{1}

const sampleChars = 200

// Outcome is the result of ingesting one document.
type Outcome string

const (
	OutcomeIngested Outcome = "ingested"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// DocumentResult describes what happened to one source document.
type DocumentResult struct {
	DocumentID   string  `json:"document_id"`
	Path         string  `json:"path"`
	Outcome      Outcome `json:"outcome"`
	Pages        int     `json:"pages"`
	Chunks       int     `json:"chunks"`
	ChunksStored int     `json:"chunks_stored"`
	ChunksFailed int     `json:"chunks_failed"`
	Error        string  `json:"error,omitempty"`
	Err          error   `json:"-"`
}

func (r *DocumentResult) fail(err error) {
	r.Outcome = OutcomeFailed
	r.Err = err
	r.Error = err.Error()
}

// Report summarises an ingestion run.
type Report struct {
	Directory       string           `json:"directory"`
	Documents       []DocumentResult `json:"documents"`
	Ingested        int              `json:"ingested"`
	Skipped         int              `json:"skipped"`
	Failed          int              `json:"failed"`
	ChunksStored    int              `json:"chunks_stored"`
	ChunksFailed    int              `json:"chunks_failed"`
	CollectionCount int              `json:"collection_count"`
	Duration        time.Duration    `json:"duration"`
}

func (r *Report) add(res DocumentResult) {
	r.Documents = append(r.Documents, res)
	switch res.Outcome {
	case OutcomeIngested:
		r.Ingested++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.ChunksStored += res.ChunksStored
	r.ChunksFailed += res.ChunksFailed
}

// Indexer ingests source documents into the chunk collection and records a
// marker per document so later runs skip it.
type Indexer struct {
	store            vector.Store
	embedder         embedding.Embedder
	extractor        *extract.Extractor
	chunker          *Chunker
	collection       string
	markerCollection string
	extensions       []string
	logger           *zap.Logger

	// mu keeps ingestion runs from interleaving.
	mu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger for progress and per-document failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtensions limits IngestDirectory to files with these extensions (case-insensitive).
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer. extractor may be nil, in which case a default one is used.
func NewIndexer(
	store vector.Store,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	ingestCfg *config.IngestConfig,
	storeCfg *config.StoreConfig,
	opts ...IndexerOption,
) (*Indexer, error) {
	chunker, err := NewChunker(ingestCfg.ChunkSize, ingestCfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:            store,
		embedder:         embedder,
		extractor:        extractor,
		chunker:          chunker,
		collection:       storeCfg.Collection,
		markerCollection: storeCfg.MarkerCollection,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// IngestDirectory ingests every regular file directly inside dir, in file-name
// order. Subdirectories are not visited. Per-document failures are recorded in
// the report; a dimension mismatch, a store failure or cancellation of ctx stops
// the run and is returned along with the partial report.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	start := time.Now()
	report := &Report{Directory: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read source directory: %w", err)
	}
	idx.logger.Info("ingesting directory", zap.String("path", dir), zap.Int("entries", len(entries)))

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !extensionAllowed(filepath.Ext(path), idx.extensions) {
			idx.logger.Debug("skipping file with unlisted extension", zap.String("path", path))
			continue
		}
		res, err := idx.ingestFile(ctx, path)
		report.add(res)
		if err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
	}

	if err := idx.ensureCollections(ctx); err != nil {
		return report, err
	}
	if report.CollectionCount, err = idx.store.Count(ctx, idx.collection); err != nil {
		return report, fmt.Errorf("count %s: %w", idx.collection, err)
	}
	report.Duration = time.Since(start)
	idx.logger.Info("ingestion finished",
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("chunks_stored", report.ChunksStored),
		zap.Int("collection_count", report.CollectionCount),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// IngestFile ingests one document. A document whose marker exists is skipped
// without being read. Parse, embedding and write failures of this document are
// reported in the result; the returned error is set only for failures that
// must stop a batch.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (DocumentResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.ingestFile(ctx, path)
}

func (idx *Indexer) ingestFile(ctx context.Context, path string) (DocumentResult, error) {
	docID := fileid.DocumentID(path)
	res := DocumentResult{DocumentID: docID, Path: path}
	log := idx.logger.With(zap.String("document_id", docID))

	if err := ctx.Err(); err != nil {
		res.fail(err)
		return res, err
	}
	if err := idx.ensureCollections(ctx); err != nil {
		res.fail(err)
		return res, err
	}

	processed, err := idx.isProcessed(ctx, docID)
	if err != nil {
		res.fail(err)
		return res, err
	}
	if processed {
		res.Outcome = OutcomeSkipped
		metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		log.Info("document already processed, skipping")
		return res, nil
	}

	doc, digest, err := idx.readDocument(path, docID)
	if err != nil {
		log.Warn("failed to parse document", zap.String("path", path), zap.Error(err))
		res.fail(err)
		metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return res, nil
	}
	text := doc.Text()
	res.Pages = len(doc.Pages)
	log.Info("loaded document",
		zap.Int("pages", res.Pages),
		zap.String("sample", utils.Truncate(Preprocess(text), sampleChars)))

	chunks := idx.chunker.Chunk(docID, text)
	res.Chunks = len(chunks)
	log.Info("split document into chunks", zap.Int("chunks", res.Chunks))

	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			res.fail(err)
			return res, err
		}
		vec, err := idx.embedder.Embed(ctx, ch.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.fail(ctxErr)
				return res, ctxErr
			}
			res.ChunksFailed++
			log.Warn("failed to embed chunk", zap.Int("chunk_index", ch.SequenceIndex), zap.Error(err))
			continue
		}
		log.Debug("embedded chunk", zap.Int("chunk_index", ch.SequenceIndex), zap.Int("embedding_length", len(vec)))

		err = idx.store.Upsert(ctx, idx.collection, vector.Record{ID: ch.ID, Vector: vec, Metadata: ch.Metadata()})
		if err != nil {
			res.fail(fmt.Errorf("store chunk %d: %w", ch.SequenceIndex, err))
			metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
			if isBatchFatal(ctx, err) {
				return res, res.Err
			}
			log.Error("failed to store chunk", zap.Int("chunk_index", ch.SequenceIndex), zap.Error(err))
			return res, nil
		}
		res.ChunksStored++
		metrics.IngestChunksTotal.Inc()
	}

	if res.ChunksStored == 0 {
		res.fail(fmt.Errorf("all %d chunks failed to embed: %w", res.Chunks, models.ErrEmbeddingBackend))
		metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		log.Warn("no chunks stored, document will be retried on the next run")
		return res, nil
	}

	marker := vector.Record{
		ID:     docID,
		Vector: markerVector,
		Metadata: map[string]string{
			models.MetaDocumentID: docID,
			models.MetaSHA256:     digest,
		},
	}
	if err := idx.store.Upsert(ctx, idx.markerCollection, marker); err != nil {
		res.fail(fmt.Errorf("write marker: %w", err))
		metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		if isBatchFatal(ctx, err) {
			return res, res.Err
		}
		log.Error("failed to write marker", zap.Error(err))
		return res, nil
	}

	res.Outcome = OutcomeIngested
	metrics.IngestDocumentsTotal.WithLabelValues(string(OutcomeIngested)).Inc()
	count, err := idx.store.Count(ctx, idx.collection)
	if err != nil {
		return res, fmt.Errorf("count %s: %w", idx.collection, err)
	}
	log.Info("document ingested",
		zap.Int("chunks_stored", res.ChunksStored),
		zap.Int("chunks_failed", res.ChunksFailed),
		zap.Int("collection_count", count))
	return res, nil
}

// IsProcessed reports whether a marker exists for the document at path.
func (idx *Indexer) IsProcessed(ctx context.Context, path string) (bool, error) {
	if err := idx.ensureCollections(ctx); err != nil {
		return false, err
	}
	return idx.isProcessed(ctx, fileid.DocumentID(path))
}

func (idx *Indexer) isProcessed(ctx context.Context, docID string) (bool, error) {
	_, err := idx.store.Get(ctx, idx.markerCollection, docID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("look up marker for %s: %w", docID, err)
	}
}

func (idx *Indexer) ensureCollections(ctx context.Context) error {
	for _, name := range []string{idx.collection, idx.markerCollection} {
		if _, err := idx.store.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// readDocument reads and parses the file. Every error is a *models.DocumentParseError.
func (idx *Indexer) readDocument(path, docID string) (doc *models.Document, digest string, err error) {
	parseErr := func(err error) error { return &models.DocumentParseError{DocumentID: docID, Err: err} }

	pages, err := idx.extractor.Extract(path)
	if err != nil {
		return nil, "", parseErr(err)
	}
	doc = &models.Document{ID: docID, Path: path, Pages: pages}
	if Preprocess(doc.Text()) == "" {
		return nil, "", parseErr(errors.New("no extractable text"))
	}
	digest, err = fileid.DigestFile(path)
	if err != nil {
		return nil, "", parseErr(err)
	}
	return doc, digest, nil
}

// isBatchFatal reports whether a store error must stop the whole ingestion run.
func isBatchFatal(ctx context.Context, err error) bool {
	return errors.Is(err, models.ErrDimensionMismatch) || ctx.Err() != nil
}

// extensionAllowed reports whether ext is in allowed. An empty list allows everything.
func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
