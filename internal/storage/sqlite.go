// Package storage provides the SQLite-backed vector store.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/models"
	"github.com/hyperjump/policyrag/internal/vector"
)

// SQLiteStore implements vector.Store on a single SQLite file.
// Vectors are stored as little-endian float32 blobs and searched by brute force.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	metric vector.Metric
	logger *zap.Logger
}

var _ vector.Store = (*SQLiteStore)(nil)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithLogger sets a logger for store lifecycle events.
func WithLogger(l *zap.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = l }
}

// NewSQLiteStore opens or creates a store at dbPath. New collections use metric.
// Parent directories are created if they do not exist. A file that is not a
// valid SQLite database is moved aside and replaced with an empty store.
func NewSQLiteStore(dbPath string, metric vector.Metric, opts ...SQLiteOption) (*SQLiteStore, error) {
	if _, err := vector.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	s := &SQLiteStore{path: dbPath, metric: metric, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := openDB(dbPath)
	if isCorrupt(err) && dbPath != ":memory:" {
		moved, qErr := vector.Quarantine(dbPath)
		if qErr != nil {
			return nil, qErr
		}
		s.logger.Warn("vector store was unreadable; moved aside and recreated",
			zap.String("path", dbPath), zap.String("moved_to", moved), zap.Error(err))
		db, err = openDB(dbPath)
	}
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writes serialised and lets ":memory:" act as one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func isCorrupt(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrNotADB || se.Code == sqlite3.ErrCorrupt
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		metric TEXT NOT NULL,
		dimension INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		vector BLOB NOT NULL,
		metadata TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection_seq ON records(collection, seq);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// EnsureCollection creates the collection with the store's metric if it does not exist.
// An existing collection keeps the metric it was created with.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string) (*vector.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, metric) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, string(s.metric),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return s.collection(ctx, s.db, name)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) collection(ctx context.Context, q queryRower, name string) (*vector.Collection, error) {
	c := vector.Collection{Name: name}
	var metric string
	err := q.QueryRowContext(ctx,
		`SELECT metric, dimension FROM collections WHERE name = ?`, name,
	).Scan(&metric, &c.Dimension)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", vector.ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %q: %w", name, err)
	}
	c.Metric = vector.Metric(metric)
	return &c, nil
}

// Upsert inserts rec or overwrites the record with the same id. An overwrite
// keeps the record's original insertion sequence.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, rec vector.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := s.collection(ctx, tx, collection)
	if err != nil {
		return err
	}
	if err := vector.CheckDimension(collection, c.Dimension, rec.Vector); err != nil {
		return err
	}
	if c.Dimension == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE collections SET dimension = ? WHERE name = ?`, len(rec.Vector), collection,
		); err != nil {
			return fmt.Errorf("failed to set collection dimension: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (collection, id, seq, vector, metadata, updated_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?), ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
		   vector = excluded.vector,
		   metadata = excluded.metadata,
		   updated_at = excluded.updated_at`,
		collection, rec.ID, collection, encodeVector(rec.Vector), string(metadataJSON), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %q: %w", rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Get returns the metadata stored for id.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (map[string]string, error) {
	if _, err := s.collection(ctx, s.db, collection); err != nil {
		return nil, err
	}
	var metadataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&metadataJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %q in %q: %w", id, collection, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeMetadata(metadataJSON)
}

// QueryNearest scans the collection in insertion order and returns the k nearest records.
func (s *SQLiteStore) QueryNearest(ctx context.Context, collection string, query []float32, k int) ([]vector.Neighbor, error) {
	c, err := s.collection(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, metadata FROM records WHERE collection = ? ORDER BY seq`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection %q: %w", collection, err)
	}
	defer rows.Close()

	var records []vector.Record
	for rows.Next() {
		var (
			rec          vector.Record
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&rec.ID, &blob, &metadataJSON); err != nil {
			return nil, err
		}
		rec.Vector = decodeVector(blob)
		if rec.Metadata, err = decodeMetadata(metadataJSON); err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []vector.Neighbor{}, nil
	}
	if err := vector.CheckDimension(collection, c.Dimension, query); err != nil {
		return nil, err
	}
	return vector.RankNearest(records, query, c.Metric, k), nil
}

// Count returns the number of records in the collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := s.collection(ctx, s.db, collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, collection,
	).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(x))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

func decodeMetadata(s string) (map[string]string, error) {
	var m map[string]string
	if s == "" || s == "null" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}
