// Package config provides configuration loading and structs for the aide services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Infer   InferConfig   `yaml:"infer"`
	Storage StorageConfig `yaml:"storage"`
	Web     WebConfig     `yaml:"web"`
	Model   ModelConfig   `yaml:"model"`
}

// ServerConfig holds chat API server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// InferConfig holds inference service settings. URL is where the chat server
// reaches the inference service; Host/Port are where `aide infer` listens.
type InferConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WebConfig holds search-provider and web cache settings.
type WebConfig struct {
	SearxURL       string `yaml:"searx_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	QueryTTLHours  int    `yaml:"query_ttl_hours"`
}

// ModelConfig holds model artifact paths and training hyperparameters.
type ModelConfig struct {
	Dir           string  `yaml:"dir"`
	ContextLength int     `yaml:"context_length"`
	EmbeddingDim  int     `yaml:"embedding_dim"`
	HiddenDim     int     `yaml:"hidden_dim"`
	Epochs        int     `yaml:"epochs"`
	LearningRate  float64 `yaml:"learning_rate"`
	MaxVocab      int     `yaml:"max_vocab"`
}

// VocabPath returns the vocabulary artifact path.
func (m *ModelConfig) VocabPath() string {
	return filepath.Join(m.Dir, "vocab.json")
}

// WeightsPath returns the weights artifact path.
func (m *ModelConfig) WeightsPath() string {
	return filepath.Join(m.Dir, "weights.json")
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Model.Dir = expandPath(cfg.Model.Dir, configDir)

	return &cfg, nil
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
