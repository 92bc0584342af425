package config

import "time"

// DefaultAllowedMIMETypes are the upload types accepted by ingestion.
var DefaultAllowedMIMETypes = []string{
	"application/pdf",
	"text/plain",
	"text/markdown",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8003
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = "http://localhost:8003"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendNeo4j
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shiryo/data/db/shiryo.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/shiryo/data/indices/bleve"
	}
	if cfg.Storage.Neo4j.URI == "" {
		cfg.Storage.Neo4j.URI = "neo4j://localhost:7687"
	}
	if cfg.Storage.Neo4j.Username == "" {
		cfg.Storage.Neo4j.Username = "neo4j"
	}
	if cfg.Storage.Neo4j.Database == "" {
		cfg.Storage.Neo4j.Database = "neo4j"
	}
	if cfg.Storage.Neo4j.MaxPoolSize == 0 {
		cfg.Storage.Neo4j.MaxPoolSize = 50
	}
	if cfg.Storage.Neo4j.ConnectTimeout == 0 {
		cfg.Storage.Neo4j.ConnectTimeout = 5 * time.Second
	}

	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 2 * time.Second
	}

	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = LLMOpenAI
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:8090"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.Models.Chat == "" {
		cfg.LLM.Models.Chat = "gpt-oss-120b"
	}
	if cfg.LLM.Models.Ingestion == "" {
		cfg.LLM.Models.Ingestion = cfg.LLM.Models.Chat
	}
	if cfg.LLM.Models.Presentation == "" {
		cfg.LLM.Models.Presentation = cfg.LLM.Models.Chat
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingGateway
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 2
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1200
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 250
	}

	if cfg.Retrieval.MaxChunks == 0 {
		cfg.Retrieval.MaxChunks = 20
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.3
	}
	if cfg.Retrieval.MinWordLength == 0 {
		cfg.Retrieval.MinWordLength = 3
	}

	if cfg.Ingestion.AllowedMIMETypes == nil {
		cfg.Ingestion.AllowedMIMETypes = append([]string(nil), DefaultAllowedMIMETypes...)
	}
	if cfg.Ingestion.MetadataMaxChars == 0 {
		cfg.Ingestion.MetadataMaxChars = 8000
	}
	if cfg.Ingestion.MetadataTimeout == 0 {
		cfg.Ingestion.MetadataTimeout = 10 * time.Second
	}

	if cfg.Presentation.MaxChunks == 0 {
		cfg.Presentation.MaxChunks = 30
	}
	if cfg.Presentation.SampleChunks == 0 {
		cfg.Presentation.SampleChunks = 15
	}
	if cfg.Presentation.SampleChars == 0 {
		cfg.Presentation.SampleChars = 5000
	}
	if cfg.Presentation.StreamBuffer == 0 {
		cfg.Presentation.StreamBuffer = 8
	}
	if cfg.Presentation.ExportDir == "" {
		cfg.Presentation.ExportDir = "/usr/local/var/shiryo/data/saved_presentations"
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".doc", ".docx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
