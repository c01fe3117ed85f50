package config

import (
	"path/filepath"
	"time"
)

// Collection names used by the original HR deployment.
const (
	DefaultCollection       = "hr_documents"
	DefaultMarkerCollection = "processed_pdfs"
)

// Default store locations. The memory store keeps its own snapshot file so it
// never reads or replaces a SQLite database.
const (
	DefaultSQLitePath   = "./policyrag_db/policyrag.db"
	DefaultSnapshotPath = "./policyrag_db/policyrag.gob"
)

// ApplyDefaults sets default values for any zero values in cfg. Default paths
// are relative to the working directory.
func ApplyDefaults(cfg *Config) {
	applyDefaults(cfg, "")
}

// applyDefaults fills zero values; default paths are joined to baseDir when it is set.
func applyDefaults(cfg *Config, baseDir string) {
	defaultPath := func(p string) string {
		if baseDir == "" {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Source.Directory == "" {
		cfg.Source.Directory = defaultPath("./data")
	}
	if cfg.Source.Extensions == nil {
		cfg.Source.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods"}
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreSQLite
	}
	if cfg.Store.Path == "" {
		if cfg.Store.Type == StoreMemory {
			cfg.Store.Path = defaultPath(DefaultSnapshotPath)
		} else {
			cfg.Store.Path = defaultPath(DefaultSQLitePath)
		}
	}
	if cfg.Store.Metric == "" {
		cfg.Store.Metric = "cosine"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = DefaultCollection
	}
	if cfg.Store.MarkerCollection == "" {
		cfg.Store.MarkerCollection = DefaultMarkerCollection
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOllama
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "mistral"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 5 * time.Minute
	}
	if cfg.Generation.AnswerWords == 0 {
		cfg.Generation.AnswerWords = 1000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 && !cfg.Ingest.overlapSet {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
