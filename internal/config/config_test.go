package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/policyrag/internal/models"
)

func noEnv(string) (string, bool) { return "", false }

func mapEnv(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
store:
  path: "./db/policies.db"
ingest:
  chunk_size: 500
  chunk_overlap: 50
embedding:
  timeout: 15s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if want := filepath.Join(dir, "db", "policies.db"); cfg.Store.Path != want {
		t.Errorf("store.path = %s, want %s", cfg.Store.Path, want)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Embedding.Timeout != 15*time.Second {
		t.Errorf("embedding.timeout = %v", cfg.Embedding.Timeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandsEnvVars(t *testing.T) {
	t.Setenv("POLICYRAG_TEST_MODEL", "llama3")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
generation:
  model: "${POLICYRAG_TEST_MODEL}"
  base_url: "${POLICYRAG_TEST_UNSET:-http://gpu-box:11434}"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.Model != "llama3" {
		t.Errorf("generation.model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.BaseURL != "http://gpu-box:11434" {
		t.Errorf("generation.base_url = %q", cfg.Generation.BaseURL)
	}
}

func TestLoadOptional_missingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("chunk_size = %d, want 1000", cfg.Ingest.ChunkSize)
	}
}

func TestLoad_missingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"embedding model", cfg.Embedding.Model, "nomic-embed-text"},
		{"embedding base url", cfg.Embedding.BaseURL, "http://localhost:11434"},
		{"generation model", cfg.Generation.Model, "mistral"},
		{"generation base url", cfg.Generation.BaseURL, "http://localhost:11434"},
		{"chunk size", cfg.Ingest.ChunkSize, 1000},
		{"chunk overlap", cfg.Ingest.ChunkOverlap, 200},
		{"k", cfg.Retrieval.K, 5},
		{"answer words", cfg.Generation.AnswerWords, 1000},
		{"collection", cfg.Store.Collection, "hr_documents"},
		{"marker collection", cfg.Store.MarkerCollection, "processed_pdfs"},
		{"metric", cfg.Store.Metric, "cosine"},
		{"store type", cfg.Store.Type, StoreSQLite},
		{"port", cfg.Server.Port, 8080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := ApplyEnv(cfg, mapEnv(map[string]string{
		"OLLAMA_MODEL":              "llama3",
		"OLLAMA_BASE_URL":           "http://ollama:11434",
		"POLICYRAG_EMBEDDING_MODEL": "mxbai-embed-large",
		"POLICYRAG_STORE_PATH":      "/var/lib/policyrag/db.sqlite",
		"POLICYRAG_CHUNK_SIZE":      "800",
		"POLICYRAG_CHUNK_OVERLAP":   "100",
		"POLICYRAG_K":               "3",
		"POLICYRAG_ANSWER_WORDS":    "250",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.Model != "llama3" || cfg.Embedding.Model != "mxbai-embed-large" {
		t.Errorf("models = %q / %q", cfg.Generation.Model, cfg.Embedding.Model)
	}
	if cfg.Embedding.BaseURL != "http://ollama:11434" || cfg.Generation.BaseURL != "http://ollama:11434" {
		t.Errorf("base urls = %q / %q", cfg.Embedding.BaseURL, cfg.Generation.BaseURL)
	}
	if cfg.Store.Path != "/var/lib/policyrag/db.sqlite" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Ingest.ChunkSize != 800 || cfg.Ingest.ChunkOverlap != 100 || cfg.Retrieval.K != 3 || cfg.Generation.AnswerWords != 250 {
		t.Errorf("numeric overrides not applied: %+v %+v %+v", cfg.Ingest, cfg.Retrieval, cfg.Generation)
	}
}

func TestApplyEnv_badInteger(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := ApplyEnv(cfg, mapEnv(map[string]string{"POLICYRAG_K": "five"}))
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestApplyEnv_noneSet(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	before := *cfg
	if err := ApplyEnv(cfg, noEnv); err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest != before.Ingest || cfg.Generation.Model != before.Generation.Model {
		t.Error("ApplyEnv changed config without any variables set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"overlap exceeds size", func(c *Config) { c.Ingest.ChunkSize = 100; c.Ingest.ChunkOverlap = 150 }},
		{"negative overlap", func(c *Config) { c.Ingest.ChunkOverlap = -1 }},
		{"negative chunk size", func(c *Config) { c.Ingest.ChunkSize = -5 }},
		{"zero k", func(c *Config) { c.Retrieval.K = -1 }},
		{"bad metric", func(c *Config) { c.Store.Metric = "dot" }},
		{"bad store type", func(c *Config) { c.Store.Type = "chroma" }},
		{"same collections", func(c *Config) { c.Store.MarkerCollection = c.Store.Collection }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "bedrock" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("Validate() = %v, want configuration error", err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Store:  StoreConfig{Path: "/tmp/policyrag.db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Store.Path != "/tmp/policyrag.db" {
		t.Errorf("loaded = %+v / %+v", loaded.Server, loaded.Store)
	}
}

func TestLoad_explicitZeroOverlapIsKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ingest:
  chunk_size: 500
  chunk_overlap: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 0 {
		t.Errorf("ingest = %+v, want size 500 overlap 0", cfg.Ingest)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero overlap should validate: %v", err)
	}
}

func TestLoad_omittedOverlapUsesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ingest:\n  chunk_size: 500\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("chunk_overlap = %d, want 200", cfg.Ingest.ChunkOverlap)
	}
}

func TestApplyEnv_zeroOverlap(t *testing.T) {
	cfg := &Config{}
	if err := ApplyEnv(cfg, mapEnv(map[string]string{"POLICYRAG_CHUNK_OVERLAP": "0"})); err != nil {
		t.Fatal(err)
	}
	ApplyDefaults(cfg)
	if cfg.Ingest.ChunkOverlap != 0 {
		t.Errorf("chunk_overlap = %d, want 0", cfg.Ingest.ChunkOverlap)
	}
}

func TestLoad_relativePathsResolveAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  path: "policyrag_db/x.db"
source:
  directory: "./policies"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "policyrag_db", "x.db"); cfg.Store.Path != want {
		t.Errorf("store.path = %s, want %s", cfg.Store.Path, want)
	}
	if want := filepath.Join(dir, "policies"); cfg.Source.Directory != want {
		t.Errorf("source.directory = %s, want %s", cfg.Source.Directory, want)
	}
}

func TestLoad_defaultPathsFollowConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "policyrag_db", "policyrag.db"); cfg.Store.Path != want {
		t.Errorf("store.path = %s, want %s", cfg.Store.Path, want)
	}
	if want := filepath.Join(dir, "data"); cfg.Source.Directory != want {
		t.Errorf("source.directory = %s, want %s", cfg.Source.Directory, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/x.db", "/abs/x.db"},
		{"./db/x.db", "/cfg/db/x.db"},
		{"db/x.db", "/cfg/db/x.db"},
		{"~/db/x.db", filepath.Join(home, "db", "x.db")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/cfg"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyDefaults_storePathByType(t *testing.T) {
	tests := []struct {
		storeType string
		want      string
	}{
		{"", DefaultSQLitePath},
		{StoreSQLite, DefaultSQLitePath},
		{StoreMemory, DefaultSnapshotPath},
	}
	for _, tt := range tests {
		cfg := &Config{Store: StoreConfig{Type: tt.storeType}}
		ApplyDefaults(cfg)
		if cfg.Store.Path != tt.want {
			t.Errorf("type %q: store.path = %s, want %s", tt.storeType, cfg.Store.Path, tt.want)
		}
	}
}

func TestLoad_memoryTypeFromEnvGetsSnapshotPath(t *testing.T) {
	t.Setenv("POLICYRAG_STORE_TYPE", StoreMemory)
	t.Setenv("POLICYRAG_STORE_PATH", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Path != DefaultSnapshotPath {
		t.Errorf("store.path = %s, want %s", cfg.Store.Path, DefaultSnapshotPath)
	}
}
