// Package generation turns a query and its retrieved context into an answer
// using an OpenAI-compatible chat completion endpoint (Ollama by default).
package generation

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

// Generator answers a query from retrieved context. Failures wrap models.ErrGenerationBackend.
type Generator interface {
	Generate(ctx context.Context, query, context string) (string, error)
}

// ChatGenerator calls /v1/chat/completions once per answer, without retries.
type ChatGenerator struct {
	client      *openai.Client
	model       string
	words       int
	temperature float32
	logger      *zap.Logger
}

// Option configures a ChatGenerator.
type Option func(*ChatGenerator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *ChatGenerator) { g.logger = l }
}

// NewChatGenerator creates a generator for cfg.Model served at cfg.BaseURL.
func NewChatGenerator(cfg *config.GenerationConfig, opts ...Option) *ChatGenerator {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = utils.OpenAIBaseURL(cfg.BaseURL)
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	g := &ChatGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		words:       cfg.AnswerWords,
		temperature: cfg.Temperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the model's answer to query given the retrieved context.
func (g *ChatGenerator) Generate(ctx context.Context, query, retrieved string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: TaskPrompt(query, retrieved, g.words)},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("no choices in completion response: %w", models.ErrGenerationBackend)
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("empty completion (finish reason %q): %w", resp.Choices[0].FinishReason, models.ErrGenerationBackend)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(g.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}
	words := utils.WordCount(answer)
	g.logger.Debug("generated answer",
		zap.String("model", g.model),
		zap.Int("answer_words", words),
		zap.Duration("duration", duration))
	if g.words > 0 && words > g.words {
		// The budget is a prompt instruction only; the answer is returned as is.
		g.logger.Warn("answer exceeds word budget", zap.Int("budget", g.words), zap.Int("answer_words", words))
	}
	return answer, nil
}

// parseAPIError extracts a readable message from a go-openai error.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body)), models.ErrGenerationBackend)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, models.ErrGenerationBackend)
	}
	return fmt.Errorf("generation request failed: %v: %w", err, models.ErrGenerationBackend)
}
