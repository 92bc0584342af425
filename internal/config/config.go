// Package config provides configuration loading and structs for the Shiryo server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	LLM          LLMConfig          `yaml:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Chunking     ChunkingConfig     `yaml:"chunking"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Ingestion    IngestionConfig    `yaml:"ingestion"`
	Presentation PresentationConfig `yaml:"presentation"`
	Watch        WatchConfig        `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// PublicBaseURL prefixes links to exported presentation files.
	PublicBaseURL  string        `yaml:"public_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// Storage backends.
const (
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

// StorageConfig selects the document store and holds index paths.
type StorageConfig struct {
	Backend        string      `yaml:"backend"`
	DatabasePath   string      `yaml:"database_path"`
	BleveIndexPath string      `yaml:"bleve_index_path"`
	Neo4j          Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig holds graph database connection settings.
type Neo4jConfig struct {
	URI            string        `yaml:"uri"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RedisConfig holds cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Generation backends.
const (
	LLMOpenAI = "openai"
	LLMOllama = "ollama"
)

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Backend           string        `yaml:"backend"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	Temperature       float64       `yaml:"temperature"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Models            ModelsConfig  `yaml:"models"`
}

// ModelsConfig names the model used by each pipeline.
type ModelsConfig struct {
	Chat         string `yaml:"chat"`
	Ingestion    string `yaml:"ingestion"`
	Presentation string `yaml:"presentation"`
}

// Embedding providers.
const (
	EmbeddingGateway = "gateway"
	EmbeddingONNX    = "onnx"
	EmbeddingMock    = "mock"
)

// EmbeddingConfig holds embedding settings. The gateway provider uses the LLM backend.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	CacheSize   int    `yaml:"cache_size"`
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
}

// ChunkingConfig holds passage sizes in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig tunes the chat context search.
type RetrievalConfig struct {
	MaxChunks     int     `yaml:"max_chunks"`
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MinWordLength int     `yaml:"min_word_length"`
}

// IngestionConfig tunes the upload pipeline.
type IngestionConfig struct {
	AllowedMIMETypes []string      `yaml:"allowed_mime_types"`
	MetadataMaxChars int           `yaml:"metadata_max_chars"`
	MetadataTimeout  time.Duration `yaml:"metadata_timeout"`
}

// PresentationConfig tunes deck generation.
type PresentationConfig struct {
	MaxChunks    int    `yaml:"max_chunks"`
	SampleChunks int    `yaml:"sample_chunks"`
	SampleChars  int    `yaml:"sample_chars"`
	StreamBuffer int    `yaml:"stream_buffer"`
	ExportDir    string `yaml:"export_dir"`
}

// WatchConfig holds inbox directory settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides and defaults,
// and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Presentation.ExportDir = expandPath(cfg.Presentation.ExportDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects unknown backends.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendNeo4j, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.LLM.Backend {
	case LLMOpenAI, LLMOllama:
	default:
		return fmt.Errorf("unknown llm backend %q", c.LLM.Backend)
	}
	switch c.Embedding.Provider {
	case EmbeddingGateway, EmbeddingONNX, EmbeddingMock:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Chunking.Overlap, c.Chunking.Size)
	}
	return nil
}

// Save writes the config to path. Used for persisting inbox directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// SaveWatchDirectories rewrites only the watch directories of the config file at path, so
// environment overrides and defaults are not persisted.
func SaveWatchDirectories(path string, dirs []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Watch.Directories = append([]string(nil), dirs...)
	return Save(path, &cfg)
}
