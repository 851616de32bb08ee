// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
// Configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Generation GenerationConfig `mapstructure:"generation"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig covers both the sqlite metadata database and the object
// store that receives rendered images.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	// Backend is "filesystem" or "gcs".
	Backend         string `mapstructure:"backend"`
	ImageDir        string `mapstructure:"image_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	GCSPublicDomain string `mapstructure:"gcs_public_domain"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig limits HTTP traffic per API key. Per-model generation
// limits live in GenerationConfig.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type InferenceConfig struct {
	// Provider is "huggingface" or "openai".
	Provider    string            `mapstructure:"provider"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
}

type HuggingFaceConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type ScoringConfig struct {
	// ProviderOrder controls which scorers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["anthropic", "openai"]
	ProviderOrder       []string        `mapstructure:"provider_order"`
	Anthropic           AnthropicConfig `mapstructure:"anthropic"`
	OpenAI              OpenAIConfig    `mapstructure:"openai"`
	RatePerMinute       int             `mapstructure:"rate_per_minute"`
	DefaultQualityScore float64         `mapstructure:"default_quality_score"`
}

type GenerationConfig struct {
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type CacheConfig struct {
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	AnalyticsTTL time.Duration `mapstructure:"analytics_ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables a rotating log file next to stdout output when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// STYLELAB_ prefix + nested keys: STYLELAB_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("STYLELAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.database_path", "./storage/stylelab.db")
	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.image_dir", "./storage/images")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/images")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("inference.provider", "huggingface")
	v.SetDefault("inference.huggingface.base_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("inference.openai.model", "dall-e-3")
	v.SetDefault("scoring.provider_order", []string{"anthropic", "openai"})
	v.SetDefault("scoring.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("scoring.openai.model", "gpt-4o")
	v.SetDefault("scoring.rate_per_minute", 20)
	v.SetDefault("scoring.default_quality_score", 5.0)
	v.SetDefault("generation.rate_limit_requests", 10)
	v.SetDefault("generation.rate_limit_window", time.Minute)
	v.SetDefault("cache.default_ttl", 30*time.Minute)
	v.SetDefault("cache.analytics_ttl", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "filesystem":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	switch c.Inference.Provider {
	case "huggingface", "openai":
	default:
		return fmt.Errorf("unknown inference provider: %q", c.Inference.Provider)
	}

	if c.Generation.RateLimitRequests < 1 {
		return fmt.Errorf("generation.rate_limit_requests must be positive")
	}
	if c.Generation.RateLimitWindow <= 0 {
		return fmt.Errorf("generation.rate_limit_window must be positive")
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
