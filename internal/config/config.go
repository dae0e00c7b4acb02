package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tripdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// TaxonomyConfig locates the activity taxonomy file.
type TaxonomyConfig struct {
	Path string `yaml:"path"`
}

// CorpusConfig locates an optional documents file ingested at startup.
type CorpusConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig holds completion/embedding provider settings (OpenAI-compatible).
type ProviderConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	CompletionModel string `yaml:"completion_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	Dimensions      int    `yaml:"dimensions"`
}

// CacheConfig holds the optional Redis embedding cache settings.
// Empty addrs disable the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// RetrievalConfig holds query-time tuning.
type RetrievalConfig struct {
	RRFK               int     `yaml:"rrf_k"`
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold"`
	SubSearchTimeoutMS int     `yaml:"sub_search_timeout_ms"`
	RewriteTimeoutMS   int     `yaml:"rewrite_timeout_ms"`
	DefaultLimit       int     `yaml:"default_limit"`
	MaxLimit           int     `yaml:"max_limit"`
}

// IndexingConfig holds pipeline tuning.
type IndexingConfig struct {
	Workers            int `yaml:"workers"`
	WriteAttempts      int `yaml:"write_attempts"`
	BreakerThreshold   int `yaml:"breaker_threshold"`
	BreakerCooldownSec int `yaml:"breaker_cooldown_sec"`
	ExtractTimeoutMS   int `yaml:"extract_timeout_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Taxonomy.Path == "" {
		c.Taxonomy.Path = filepath.Join("config", "taxonomy.yaml")
	}
	if c.Provider.CompletionModel == "" {
		c.Provider.CompletionModel = "gpt-4o-mini"
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Provider.Dimensions <= 0 {
		c.Provider.Dimensions = 1536
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Retrieval.RRFK <= 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.FuzzyThreshold <= 0 {
		c.Retrieval.FuzzyThreshold = 0.8
	}
	if c.Retrieval.SubSearchTimeoutMS <= 0 {
		c.Retrieval.SubSearchTimeoutMS = 500
	}
	if c.Retrieval.RewriteTimeoutMS <= 0 {
		c.Retrieval.RewriteTimeoutMS = 2000
	}
	if c.Retrieval.DefaultLimit <= 0 {
		c.Retrieval.DefaultLimit = 10
	}
	if c.Retrieval.MaxLimit <= 0 {
		c.Retrieval.MaxLimit = 100
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 5
	}
	if c.Indexing.WriteAttempts <= 0 {
		c.Indexing.WriteAttempts = 3
	}
	if c.Indexing.BreakerThreshold <= 0 {
		c.Indexing.BreakerThreshold = 5
	}
	if c.Indexing.BreakerCooldownSec <= 0 {
		c.Indexing.BreakerCooldownSec = 30
	}
	if c.Indexing.ExtractTimeoutMS <= 0 {
		c.Indexing.ExtractTimeoutMS = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Taxonomy.Path == "" {
		return fmt.Errorf("taxonomy.path is required")
	}
	if c.Retrieval.FuzzyThreshold <= 0 || c.Retrieval.FuzzyThreshold > 1 {
		return fmt.Errorf("retrieval.fuzzy_threshold must be in (0, 1], got %v", c.Retrieval.FuzzyThreshold)
	}
	if c.Retrieval.DefaultLimit > c.Retrieval.MaxLimit {
		return fmt.Errorf("retrieval.default_limit %d exceeds max_limit %d",
			c.Retrieval.DefaultLimit, c.Retrieval.MaxLimit)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
