package vector

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/policyrag/internal/models"
)

// MemoryStore is an in-memory Store using brute-force search. When created
// with a snapshot path it loads the snapshot on open and writes it on Save and Close.
type MemoryStore struct {
	metric      Metric
	path        string
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	info    Collection
	index   map[string]int
	records []Record
}

// snapshot is the gob-encoded on-disk form of a MemoryStore.
type snapshot struct {
	Version     int
	Collections []snapshotCollection
}

type snapshotCollection struct {
	Name      string
	Metric    Metric
	Dimension int
	Records   []Record
}

const snapshotVersion = 1

// NewMemoryStore creates a store whose new collections use metric. snapshotPath
// may be empty for a purely in-memory store. A snapshot that cannot be decoded
// is moved aside and the store starts empty, unless the file is a SQLite
// database, which is left untouched and reported as a configuration error.
func NewMemoryStore(metric Metric, snapshotPath string) (*MemoryStore, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	s := &MemoryStore{
		metric:      metric,
		path:        snapshotPath,
		collections: make(map[string]*memCollection),
	}
	if snapshotPath == "" {
		return s, nil
	}
	if err := s.load(); err != nil {
		if errors.Is(err, errCorruptSnapshot) {
			if _, qErr := Quarantine(snapshotPath); qErr != nil {
				return nil, qErr
			}
			s.collections = make(map[string]*memCollection)
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// Metric returns the metric assigned to new collections.
func (s *MemoryStore) Metric() Metric {
	return s.metric
}

// EnsureCollection creates the collection if it does not exist.
func (s *MemoryStore) EnsureCollection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{
			info:  Collection{Name: name, Metric: s.metric},
			index: make(map[string]int),
		}
		s.collections[name] = c
	}
	info := c.info
	return &info, nil
}

// Upsert inserts or overwrites rec, keeping the original insertion position on overwrite.
func (s *MemoryStore) Upsert(ctx context.Context, collection string, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collectionLocked(collection)
	if err != nil {
		return err
	}
	if err := CheckDimension(collection, c.info.Dimension, rec.Vector); err != nil {
		return err
	}
	stored := Record{
		ID:       rec.ID,
		Vector:   append([]float32(nil), rec.Vector...),
		Metadata: copyMetadata(rec.Metadata),
	}
	if c.info.Dimension == 0 {
		c.info.Dimension = len(rec.Vector)
	}
	if i, ok := c.index[rec.ID]; ok {
		c.records[i] = stored
		return nil
	}
	c.index[rec.ID] = len(c.records)
	c.records = append(c.records, stored)
	return nil
}

// Get returns a copy of the metadata stored for id.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("record %q in %q: %w", id, collection, models.ErrNotFound)
	}
	return copyMetadata(c.records[i].Metadata), nil
}

// QueryNearest returns up to k records nearest to query.
func (s *MemoryStore) QueryNearest(ctx context.Context, collection string, query []float32, k int) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	if len(c.records) == 0 {
		return []Neighbor{}, nil
	}
	if err := CheckDimension(collection, c.info.Dimension, query); err != nil {
		return nil, err
	}
	neighbors := RankNearest(c.records, query, c.info.Metric, k)
	for i := range neighbors {
		neighbors[i].Metadata = copyMetadata(neighbors[i].Metadata)
	}
	return neighbors, nil
}

// Count returns the number of records in the collection.
func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collectionLocked(collection)
	if err != nil {
		return 0, err
	}
	return len(c.records), nil
}

func (s *MemoryStore) collectionLocked(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// Save writes the snapshot file, if one is configured. The file is replaced atomically.
func (s *MemoryStore) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{Version: snapshotVersion}
	for _, c := range s.collections {
		snap.Collections = append(snap.Collections, snapshotCollection{
			Name:      c.info.Name,
			Metric:    c.info.Metric,
			Dimension: c.info.Dimension,
			Records:   c.records,
		})
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

var errCorruptSnapshot = errors.New("corrupt snapshot")

// sqliteHeader starts every SQLite database file.
var sqliteHeader = []byte("SQLite format 3\x00")

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	if bytes.HasPrefix(data, sqliteHeader) {
		return fmt.Errorf("%w: %s is a SQLite database, not a memory store snapshot; use store.type sqlite or another store.path",
			models.ErrConfiguration, s.path)
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("%w: %v", errCorruptSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", errCorruptSnapshot, snap.Version)
	}
	for _, sc := range snap.Collections {
		c := &memCollection{
			info:    Collection{Name: sc.Name, Metric: sc.Metric, Dimension: sc.Dimension},
			index:   make(map[string]int, len(sc.Records)),
			records: sc.Records,
		}
		for i, rec := range sc.Records {
			c.index[rec.ID] = i
		}
		s.collections[sc.Name] = c
	}
	return nil
}

// Close saves the snapshot, if configured.
func (s *MemoryStore) Close() error {
	return s.Save()
}

// Quarantine renames an unreadable store file to "<path>.corrupt-<unix>" and
// returns the new name.
func Quarantine(path string) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := os.Rename(path, dst); err != nil {
		return "", fmt.Errorf("move aside corrupt store %s: %w", path, err)
	}
	return dst, nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
