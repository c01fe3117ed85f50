// Package vector defines the vector store contract, distance metrics and an
// in-memory store.
package vector

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned for operations on a collection that was never ensured.
var ErrCollectionNotFound = errors.New("collection not found")

// Store holds named collections of (id, vector, metadata) records.
//
// EnsureCollection must be called before a collection is used. A collection's
// metric is fixed when it is created and its dimension by its first record.
type Store interface {
	EnsureCollection(ctx context.Context, name string) (*Collection, error)
	// Upsert inserts rec or overwrites the record with the same id in place.
	// A vector of the wrong length fails with *models.DimensionMismatchError.
	Upsert(ctx context.Context, collection string, rec Record) error
	// Get returns the metadata stored for id, or an error wrapping models.ErrNotFound.
	Get(ctx context.Context, collection, id string) (map[string]string, error)
	// QueryNearest returns up to k records by ascending distance. Ties keep
	// insertion order. An empty collection yields an empty slice.
	QueryNearest(ctx context.Context, collection string, query []float32, k int) ([]Neighbor, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// Collection describes a collection. Dimension is 0 until the first upsert.
type Collection struct {
	Name      string `json:"name"`
	Metric    Metric `json:"metric"`
	Dimension int    `json:"dimension"`
}

// Record is a stored vector with its metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Neighbor is one k-NN result.
type Neighbor struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}
