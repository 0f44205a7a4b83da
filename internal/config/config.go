// Package config provides layered configuration for CodeScope.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/codescope/config.yaml)
//  3. Project config (.codescope.yaml in the project root)
//  4. .env file in the project root
//  5. Environment variables (CODESCOPE_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete CodeScope configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Chat       ChatConfig       `yaml:"chat" json:"chat"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures which paths to exclude beyond the built-in
// directory denylist. Patterns use doublestar glob syntax.
type PathsConfig struct {
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IngestConfig configures repository ingestion.
type IngestConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the number of characters shared between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// DeleteBatchSize caps how many record IDs are deleted per store call.
	DeleteBatchSize int `yaml:"delete_batch_size" json:"delete_batch_size"`

	// InsertBatchSize caps how many records are inserted per store call.
	InsertBatchSize int `yaml:"insert_batch_size" json:"insert_batch_size"`

	// RespectGitignore skips files matched by .gitignore (default: true).
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`

	// MaxFileSizeMB skips files larger than this (default: 5).
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// WatchDebounce is the debounce window for watch mode (e.g. "500ms").
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures hybrid retrieval.
//
// Weights are configurable via:
//  1. User config (~/.config/codescope/config.yaml) - personal defaults
//  2. Project config (.codescope.yaml) - per-repo tuning
//  3. Env vars (CODESCOPE_SEMANTIC_WEIGHT, CODESCOPE_LEXICAL_WEIGHT) - highest priority
type SearchConfig struct {
	// SemanticWeight is the weight for vector similarity (0.0-1.0).
	// Must sum to 1.0 with LexicalWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// LexicalWeight is the weight for keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// MaxResults is the default number of results returned per query.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// CacheSize is the number of query results kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "openai", "static",
	// or empty for auto-detection (Ollama if reachable, else static).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding dimensionality. 0 auto-detects from the
	// provider.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is the number of texts embedded per provider call.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// OpenAIBaseURL overrides the OpenAI API base URL. The API key comes
	// from OPENAI_API_KEY.
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`
}

// StoreConfig configures the index store backend.
type StoreConfig struct {
	// Backend selects the store: "local" (SQLite + HNSW) or "postgres"
	// (pgvector).
	Backend string `yaml:"backend" json:"backend"`

	// DataDir is where the local backend keeps its files, relative to the
	// project root unless absolute.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`
}

// ChatConfig configures answer generation.
type ChatConfig struct {
	// Provider selects the generation backend: "ollama" or "openai".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the generation model name.
	Model string `yaml:"model" json:"model"`

	// ContextChunks is how many retrieved chunks feed the prompt.
	ContextChunks int `yaml:"context_chunks" json:"context_chunks"`
}

// ServerConfig configures the HTTP and MCP servers.
type ServerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr" json:"addr"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded in addition to the scanner's
// built-in directory denylist.
var defaultExcludePatterns = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: defaultExcludePatterns,
		},
		Ingest: IngestConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			DeleteBatchSize:  5000,
			InsertBatchSize:  1000,
			RespectGitignore: true,
			MaxFileSizeMB:    5,
			WatchDebounce:    "500ms",
		},
		Search: SearchConfig{
			SemanticWeight: 0.7,
			LexicalWeight:  0.3,
			MaxResults:     8,
			CacheSize:      128,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama -> static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // Empty uses default http://localhost:11434
		},
		Store: StoreConfig{
			Backend: "local",
			DataDir: ".codescope",
		},
		Chat: ChatConfig{
			Provider:      "ollama",
			Model:         "llama3",
			ContextChunks: 5,
		},
		Server: ServerConfig{
			Addr:     ":8000",
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codescope/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codescope/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codescope", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codescope", "config.yaml")
	}
	return filepath.Join(home, ".config", "codescope", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the project rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// godotenv never overrides variables already set in the environment,
	// so real env vars still win over .env entries.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .codescope.yaml or .codescope.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".codescope.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".codescope.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Exclude) > 0 {
		// Merge with defaults rather than replace.
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	// Ingest
	if other.Ingest.ChunkSize != 0 {
		c.Ingest.ChunkSize = other.Ingest.ChunkSize
	}
	if other.Ingest.ChunkOverlap != 0 {
		c.Ingest.ChunkOverlap = other.Ingest.ChunkOverlap
	}
	if other.Ingest.DeleteBatchSize != 0 {
		c.Ingest.DeleteBatchSize = other.Ingest.DeleteBatchSize
	}
	if other.Ingest.InsertBatchSize != 0 {
		c.Ingest.InsertBatchSize = other.Ingest.InsertBatchSize
	}
	if other.Ingest.MaxFileSizeMB != 0 {
		c.Ingest.MaxFileSizeMB = other.Ingest.MaxFileSizeMB
	}
	if other.Ingest.WatchDebounce != "" {
		c.Ingest.WatchDebounce = other.Ingest.WatchDebounce
	}

	// Search weights: 0 is not a practical weight, so only merge non-zero.
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = other.Embeddings.OpenAIBaseURL
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.DataDir != "" {
		c.Store.DataDir = other.Store.DataDir
	}
	if other.Store.PostgresDSN != "" {
		c.Store.PostgresDSN = other.Store.PostgresDSN
	}

	// Chat
	if other.Chat.Provider != "" {
		c.Chat.Provider = other.Chat.Provider
	}
	if other.Chat.Model != "" {
		c.Chat.Model = other.Chat.Model
	}
	if other.Chat.ContextChunks != 0 {
		c.Chat.ContextChunks = other.Chat.ContextChunks
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies CODESCOPE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESCOPE_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("CODESCOPE_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("CODESCOPE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}

	if v := os.Getenv("CODESCOPE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// CODESCOPE_EMBEDDER is an alias for CODESCOPE_EMBEDDINGS_PROVIDER.
	if v := os.Getenv("CODESCOPE_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CODESCOPE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODESCOPE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}

	if v := os.Getenv("CODESCOPE_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("CODESCOPE_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("CODESCOPE_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}

	if v := os.Getenv("CODESCOPE_CHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("CODESCOPE_CHAT_PROVIDER"); v != "" {
		c.Chat.Provider = v
	}

	if v := os.Getenv("CODESCOPE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CODESCOPE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or a .codescope.yaml/.yml file by walking up
// the directory tree. If neither is found, the start directory is returned.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".codescope.yaml")) ||
			fileExists(filepath.Join(currentDir, ".codescope.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// ResolveDataDir resolves the store data directory against the project root.
func (c *Config) ResolveDataDir(root string) string {
	if filepath.IsAbs(c.Store.DataDir) {
		return c.Store.DataDir
	}
	return filepath.Join(root, c.Store.DataDir)
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}

	sum := c.Search.SemanticWeight + c.Search.LexicalWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("semantic_weight + lexical_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.Search.MaxResults)
	}

	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk_overlap must be smaller than chunk_size, got %d >= %d",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.DeleteBatchSize < 1 {
		return fmt.Errorf("delete_batch_size must be positive, got %d", c.Ingest.DeleteBatchSize)
	}
	if c.Ingest.InsertBatchSize < 1 {
		return fmt.Errorf("insert_batch_size must be positive, got %d", c.Ingest.InsertBatchSize)
	}

	if c.Embeddings.Provider != "" { // Empty string triggers auto-detection.
		validProviders := map[string]bool{"ollama": true, "openai": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'openai', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validBackends := map[string]bool{"local": true, "postgres": true}
	if !validBackends[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("store.backend must be 'local' or 'postgres', got %s", c.Store.Backend)
	}
	if strings.ToLower(c.Store.Backend) == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store.postgres_dsn is required when store.backend is 'postgres'")
	}

	validChatProviders := map[string]bool{"ollama": true, "openai": true}
	if !validChatProviders[strings.ToLower(c.Chat.Provider)] {
		return fmt.Errorf("chat.provider must be 'ollama' or 'openai', got %s", c.Chat.Provider)
	}
	if c.Chat.ContextChunks < 1 {
		return fmt.Errorf("chat.context_chunks must be positive, got %d", c.Chat.ContextChunks)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
