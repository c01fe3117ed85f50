// Package embedding turns text into vectors via Ollama, a local ONNX model or a
// deterministic mock, with an optional LRU cache in front.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/models"
)

// Embedder produces vector embeddings for text. Failures wrap models.ErrEmbeddingBackend.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in a cache when
// cfg.CacheSize is positive.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		e = NewOllamaEmbedder(cfg, logger)
	case config.ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
		}
	case config.ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, cfg.Provider)
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("cache_size", cfg.CacheSize))
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
