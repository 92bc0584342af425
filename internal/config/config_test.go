package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
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
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/documents.db"
watch:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "documents.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8003 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendNeo4j || cfg.LLM.Backend != LLMOpenAI || cfg.Embedding.Provider != EmbeddingGateway {
		t.Errorf("default backends: storage=%s llm=%s embedding=%s", cfg.Storage.Backend, cfg.LLM.Backend, cfg.Embedding.Provider)
	}
	if cfg.Chunking.Size != 1200 || cfg.Chunking.Overlap != 250 {
		t.Errorf("default chunking: got %+v", cfg.Chunking)
	}
	if cfg.Retrieval.MaxChunks != 20 || cfg.Retrieval.TopK != 10 || cfg.Retrieval.MinSimilarity != 0.3 {
		t.Errorf("default retrieval: got %+v", cfg.Retrieval)
	}
	if cfg.Ingestion.MetadataMaxChars != 8000 || cfg.Ingestion.MetadataTimeout != 10*time.Second {
		t.Errorf("default ingestion: got %+v", cfg.Ingestion)
	}
	if len(cfg.Ingestion.AllowedMIMETypes) != 5 {
		t.Errorf("allowed mime types: got %v", cfg.Ingestion.AllowedMIMETypes)
	}
	if cfg.Presentation.MaxChunks != 30 || cfg.Presentation.SampleChunks != 15 {
		t.Errorf("default presentation: got %+v", cfg.Presentation)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("default redis ttl: got %s", cfg.Redis.TTL)
	}
	if cfg.LLM.Models.Ingestion != cfg.LLM.Models.Chat {
		t.Errorf("ingestion model should default to chat model")
	}
	if len(cfg.Watch.Extensions) == 0 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestLoad_DurationsAndBackends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  backend: sqlite
  database_path: "./shiryo.db"
llm:
  backend: ollama
  timeout: 45s
ingestion:
  metadata_timeout: 3s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.LLM.Backend != LLMOllama {
		t.Errorf("backends: %s %s", cfg.Storage.Backend, cfg.LLM.Backend)
	}
	if cfg.LLM.Timeout != 45*time.Second || cfg.Ingestion.MetadataTimeout != 3*time.Second {
		t.Errorf("durations: %s %s", cfg.LLM.Timeout, cfg.Ingestion.MetadataTimeout)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: mongo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SHIRYO_NEO4J_PASSWORD", "s3cret")
	t.Setenv("SHIRYO_LLM_BACKEND", "ollama")
	cfg := &Config{}
	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	if cfg.Storage.Neo4j.Password != "s3cret" {
		t.Errorf("password not taken from env")
	}
	if cfg.LLM.Backend != LLMOllama {
		t.Errorf("backend = %s", cfg.LLM.Backend)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}

func TestSaveWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9001\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHIRYO_LLM_API_KEY", "should-not-be-saved")
	if err := SaveWatchDirectories(path, []string{"/srv/inbox"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "should-not-be-saved") {
		t.Error("environment secrets must not be persisted")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9001 || len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != "/srv/inbox" {
		t.Errorf("unexpected config after save: port=%d dirs=%v", cfg.Server.Port, cfg.Watch.Directories)
	}
}
