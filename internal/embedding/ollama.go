package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/metrics"
	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/pkg/utils"
)

// OllamaEmbedder calls the OpenAI-compatible /v1/embeddings endpoint that Ollama serves.
type OllamaEmbedder struct {
	client   *openai.Client
	model    openai.EmbeddingModel
	provider string
	logger   *zap.Logger
}

// NewOllamaEmbedder creates an embedder for cfg.BaseURL. The base URL is the
// Ollama root (e.g. http://localhost:11434); "/v1" is appended.
func NewOllamaEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) *OllamaEmbedder {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = utils.OpenAIBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaEmbedder{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    openai.EmbeddingModel(cfg.Model),
		provider: config.ProviderOllama,
		logger:   logger,
	}
}

// Embed returns the embedding for text. No retries are attempted.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		return nil, parseAPIError("embedding", err, models.ErrEmbeddingBackend)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", models.ErrEmbeddingBackend)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())
	e.logger.Debug("embedded text",
		zap.Int("chars", len(text)),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
		zap.Duration("duration", duration))
	return resp.Data[0].Embedding, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OllamaEmbedder) Close() error {
	return nil
}

// parseAPIError extracts a readable message from a go-openai error and wraps it with sentinel.
func parseAPIError(op string, err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			op, reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)), sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w",
			op, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	return fmt.Errorf("%s request failed: %v: %w", op, err, sentinel)
}
