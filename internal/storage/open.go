package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/internal/vector"
)

// Open creates the vector store described by cfg.
// Supported types: "sqlite" (default) and "memory" (gob snapshot at cfg.Path).
func Open(cfg *config.StoreConfig, logger *zap.Logger) (vector.Store, error) {
	metric, err := vector.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case config.StoreSQLite, "":
		return NewSQLiteStore(cfg.Path, metric, WithLogger(logger))
	case config.StoreMemory:
		return vector.NewMemoryStore(metric, cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown store type: %s (supported: sqlite, memory)", models.ErrConfiguration, cfg.Type)
	}
}
