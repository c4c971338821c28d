package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Compact   CompactConfig   `yaml:"compact" mapstructure:"compact"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CatalogConfig locates the supplier catalog source.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the durable job state backend.
type StoreConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AnthropicConfig holds Anthropic API settings for the decomposition and
// market-estimation collaborator.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PricingConfig configures the three-tier price resolution policy.
type PricingConfig struct {
	HighThreshold  int    `yaml:"high_threshold" mapstructure:"high_threshold"`
	FloorThreshold int    `yaml:"floor_threshold" mapstructure:"floor_threshold"`
	TopK           int    `yaml:"top_k" mapstructure:"top_k"`
	PolicyFile     string `yaml:"policy_file" mapstructure:"policy_file"`
}

// CompactConfig bounds the running learnings digest.
type CompactConfig struct {
	MaxBytes int `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// PipelineConfig configures the batch loop.
type PipelineConfig struct {
	ItemTimeoutSecs int `yaml:"item_timeout_secs" mapstructure:"item_timeout_secs"`
	MaxRetries      int `yaml:"max_retries" mapstructure:"max_retries"`
	LatestResults   int `yaml:"latest_results" mapstructure:"latest_results"`
}

// ServerConfig configures the status/estimate API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COSTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.path", "data/supplier_catalog.csv")
	v.SetDefault("store.dir", "data")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.rate_limit", 2)
	v.SetDefault("pricing.high_threshold", 85)
	v.SetDefault("pricing.floor_threshold", 60)
	v.SetDefault("pricing.top_k", 3)
	v.SetDefault("compact.max_bytes", 2000)
	v.SetDefault("pipeline.item_timeout_secs", 60)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.latest_results", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
