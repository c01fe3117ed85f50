package config

import (
	"fmt"

	"github.com/hyperjump/policyrag/internal/models"
)

// Store types.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// Validate checks the configuration. Every error wraps models.ErrConfiguration.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return configErr("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return configErr("ingest.chunk_overlap must not be negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return configErr("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Retrieval.K <= 0 {
		return configErr("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Generation.AnswerWords <= 0 {
		return configErr("generation.answer_words must be positive, got %d", c.Generation.AnswerWords)
	}
	switch c.Store.Metric {
	case "cosine", "l2":
	default:
		return configErr("store.metric must be \"cosine\" or \"l2\", got %q", c.Store.Metric)
	}
	switch c.Store.Type {
	case StoreSQLite, StoreMemory:
	default:
		return configErr("store.type must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store.Type)
	}
	if c.Store.Collection == c.Store.MarkerCollection {
		return configErr("store.collection and store.marker_collection must differ, both are %q", c.Store.Collection)
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderONNX, ProviderMock:
	default:
		return configErr("embedding.provider must be one of ollama, onnx, mock, got %q", c.Embedding.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return configErr("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrConfiguration, fmt.Sprintf(format, args...))
}
