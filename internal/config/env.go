package config

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/policyrag/internal/models"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with any of the recognised environment variables.
// OLLAMA_BASE_URL sets both the embedding and generation backends.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", models.ErrConfiguration, key, v)
		}
		*dst = n
		return nil
	}

	str("POLICYRAG_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("POLICYRAG_EMBEDDING_MODEL", &cfg.Embedding.Model)
	if v, ok := lookup("OLLAMA_BASE_URL"); ok && v != "" {
		cfg.Embedding.BaseURL = v
		cfg.Generation.BaseURL = v
	}
	str("OLLAMA_MODEL", &cfg.Generation.Model)
	str("POLICYRAG_STORE_TYPE", &cfg.Store.Type)
	str("POLICYRAG_STORE_PATH", &cfg.Store.Path)
	str("POLICYRAG_SOURCE_DIR", &cfg.Source.Directory)

	if v, ok := lookup("POLICYRAG_CHUNK_OVERLAP"); ok && v != "" {
		cfg.Ingest.overlapSet = true
	}
	for key, dst := range map[string]*int{
		"POLICYRAG_CHUNK_SIZE":    &cfg.Ingest.ChunkSize,
		"POLICYRAG_CHUNK_OVERLAP": &cfg.Ingest.ChunkOverlap,
		"POLICYRAG_K":             &cfg.Retrieval.K,
		"POLICYRAG_ANSWER_WORDS":  &cfg.Generation.AnswerWords,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}
