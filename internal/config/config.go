// Package config provides configuration loading for harvestd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

// Config is the complete harvestd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Mongo      MongoConfig      `koanf:"mongo"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Model      ModelConfig      `koanf:"model"`
	Fetch      FetchConfig      `koanf:"fetch"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MongoConfig holds document-store configuration. The URI may embed
// credentials, so it is treated as a secret.
type MongoConfig struct {
	URI        Secret `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

// QdrantConfig holds vector-store configuration.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	Collection string `koanf:"collection"`
	VectorSize uint64 `koanf:"vector_size"`
}

// EmbeddingsConfig holds embedding-service configuration.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// ModelConfig holds language-model configuration.
type ModelConfig struct {
	BaseURL string   `koanf:"base_url"`
	Model   string   `koanf:"model"`
	APIKey  Secret   `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// FetchConfig holds web-fetch configuration.
type FetchConfig struct {
	Timeout   Duration `koanf:"timeout"`
	UserAgent string   `koanf:"user_agent"`
}

// PipelineConfig holds enrichment tuning parameters.
type PipelineConfig struct {
	TextLimit    int `koanf:"text_limit"`
	HeadingLimit int `koanf:"heading_limit"`
	ContextK     int `koanf:"context_k"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "harvestd"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "web_content"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "web_content"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536 // text-embedding-3-small dimensions
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8081"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}

	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = Duration(30 * time.Second)
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = Duration(10 * time.Second)
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "harvestd/1.0"
	}

	if cfg.Pipeline.TextLimit == 0 {
		cfg.Pipeline.TextLimit = 4000
	}
	if cfg.Pipeline.HeadingLimit == 0 {
		cfg.Pipeline.HeadingLimit = 10
	}
	if cfg.Pipeline.ContextK == 0 {
		cfg.Pipeline.ContextK = 3
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if err := vectorstore.ValidateCollectionName(c.Qdrant.Collection); err != nil {
		return fmt.Errorf("invalid qdrant collection: %w", err)
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Pipeline.TextLimit < 0 || c.Pipeline.HeadingLimit < 0 || c.Pipeline.ContextK < 0 {
		return fmt.Errorf("pipeline limits cannot be negative")
	}
	return nil
}
