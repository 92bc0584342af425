package config

import "os"

// ApplyEnv overrides endpoints and secrets from the environment. Call godotenv.Load first
// to pick up a .env file.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.Backend, "SHIRYO_STORAGE_BACKEND")
	set(&cfg.Storage.Neo4j.URI, "SHIRYO_NEO4J_URI")
	set(&cfg.Storage.Neo4j.Username, "SHIRYO_NEO4J_USER")
	set(&cfg.Storage.Neo4j.Password, "SHIRYO_NEO4J_PASSWORD")
	set(&cfg.Storage.Neo4j.Database, "SHIRYO_NEO4J_DATABASE")
	set(&cfg.Redis.Addr, "SHIRYO_REDIS_ADDR")
	set(&cfg.Redis.Password, "SHIRYO_REDIS_PASSWORD")
	set(&cfg.LLM.Backend, "SHIRYO_LLM_BACKEND")
	set(&cfg.LLM.BaseURL, "SHIRYO_LLM_BASE_URL")
	set(&cfg.LLM.APIKey, "SHIRYO_LLM_API_KEY")
	set(&cfg.Server.PublicBaseURL, "SHIRYO_PUBLIC_BASE_URL")
}
