// Package config provides configuration loading and structs for policyrag.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Source     SourceConfig     `yaml:"source"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SourceConfig describes the flat directory of policy documents.
type SourceConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
}

// StoreConfig holds the vector store location and collection names.
type StoreConfig struct {
	Type             string `yaml:"type"`
	Path             string `yaml:"path"`
	Metric           string `yaml:"metric"`
	Collection       string `yaml:"collection"`
	MarkerCollection string `yaml:"marker_collection"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	// ONNX provider only.
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// GenerationConfig configures the text-generation backend.
type GenerationConfig struct {
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	AnswerWords int           `yaml:"answer_words"`
	Temperature float32       `yaml:"temperature"`
}

// IngestConfig holds segmentation settings, in characters.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// overlapSet records an explicit chunk_overlap, so that 0 is kept.
	overlapSet bool
}

// UnmarshalYAML decodes the ingest section, noting whether chunk_overlap was given.
func (c *IngestConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ChunkSize    int  `yaml:"chunk_size"`
		ChunkOverlap *int `yaml:"chunk_overlap"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.ChunkSize = raw.ChunkSize
	if raw.ChunkOverlap != nil {
		c.ChunkOverlap = *raw.ChunkOverlap
		c.overlapSet = true
	}
	return nil
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// WatchConfig holds source directory watch settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands ${VAR} references and
// relative paths, applies environment overrides and then fills in defaults.
// Relative paths in the file, and default paths, resolve against the file's
// directory. An empty path skips the file and yields defaults plus environment,
// with default paths relative to the working directory.
func Load(path string) (*Config, error) {
	var cfg Config
	baseDir := ""
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		baseDir = filepath.Dir(path)
		cfg.Store.Path = expandPath(cfg.Store.Path, baseDir)
		cfg.Source.Directory = expandPath(cfg.Source.Directory, baseDir)
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, baseDir)
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg, baseDir)
	return &cfg, nil
}

// LoadOptional behaves like Load but treats a missing file as empty.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath resolves a path from the config file. "~/" paths are relative to
// the home directory; other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
		return path
	}
	return filepath.Join(configDir, path)
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
