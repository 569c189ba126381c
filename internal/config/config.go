// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the memory service
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// SQLite
	DBPath string `env:"DB_PATH" envDefault:"memoryd.db"`

	// Ollama embedding backend
	OllamaURL            string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string        `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	EmbedProbeTimeout    time.Duration `env:"EMBED_PROBE_TIMEOUT" envDefault:"2s"`
	EmbedTimeout         time.Duration `env:"EMBED_TIMEOUT" envDefault:"10s"`
	EmbedCacheSize       int           `env:"EMBED_CACHE_SIZE" envDefault:"512"`

	// Auth
	APIKey    string        `env:"API_KEY" envDefault:""`
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Search
	DefaultSearchLimit int `env:"DEFAULT_SEARCH_LIMIT" envDefault:"5"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
