package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/vector"
)

// Status summarises the store contents and the effective configuration.
type Status struct {
	Chunks         int          `json:"chunks"`
	Documents      int          `json:"processed_documents"`
	DiskUsageBytes int64        `json:"disk_usage_bytes"`
	Config         StatusConfig `json:"config"`
}

// StatusConfig is the part of the configuration reported by status.
type StatusConfig struct {
	SourceDirectory    string `json:"source_directory"`
	StoreType          string `json:"store_type"`
	StorePath          string `json:"store_path"`
	Metric             string `json:"metric"`
	Collection         string `json:"collection"`
	MarkerCollection   string `json:"marker_collection"`
	EmbeddingProvider  string `json:"embedding_provider"`
	EmbeddingModel     string `json:"embedding_model"`
	GenerationModel    string `json:"generation_model"`
	ChunkSize          int    `json:"chunk_size"`
	ChunkOverlap       int    `json:"chunk_overlap"`
	K                  int    `json:"k"`
	EmbeddingCacheSize int    `json:"embedding_cache_size"`
}

// CollectStatus counts both collections and measures the store on disk.
// Collections that do not exist yet count as empty.
func CollectStatus(ctx context.Context, store vector.Store, cfg *config.Config) (*Status, error) {
	chunks, err := countOrZero(ctx, store, cfg.Store.Collection)
	if err != nil {
		return nil, err
	}
	docs, err := countOrZero(ctx, store, cfg.Store.MarkerCollection)
	if err != nil {
		return nil, err
	}
	var disk int64
	if cfg.Store.Type == config.StoreMemory {
		disk, err = DiskUsageBytes(cfg.Store.Path)
	} else {
		disk, err = StoreDiskUsage(cfg.Store.Path)
	}
	if err != nil {
		return nil, err
	}
	return &Status{
		Chunks:         chunks,
		Documents:      docs,
		DiskUsageBytes: disk,
		Config: StatusConfig{
			SourceDirectory:    cfg.Source.Directory,
			StoreType:          cfg.Store.Type,
			StorePath:          cfg.Store.Path,
			Metric:             cfg.Store.Metric,
			Collection:         cfg.Store.Collection,
			MarkerCollection:   cfg.Store.MarkerCollection,
			EmbeddingProvider:  cfg.Embedding.Provider,
			EmbeddingModel:     cfg.Embedding.Model,
			GenerationModel:    cfg.Generation.Model,
			ChunkSize:          cfg.Ingest.ChunkSize,
			ChunkOverlap:       cfg.Ingest.ChunkOverlap,
			K:                  cfg.Retrieval.K,
			EmbeddingCacheSize: cfg.Embedding.CacheSize,
		},
	}, nil
}

func countOrZero(ctx context.Context, store vector.Store, collection string) (int, error) {
	n, err := store.Count(ctx, collection)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		return 0, nil
	}
	return n, err
}
