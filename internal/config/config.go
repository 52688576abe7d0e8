package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig              `yaml:"store" mapstructure:"store"`
	Schema    SchemaConfig             `yaml:"schema" mapstructure:"schema"`
	Parsers   ParsersConfig            `yaml:"parsers" mapstructure:"parsers"`
	Services  map[string]ServiceConfig `yaml:"services" mapstructure:"services"`
	LLM       LLMConfig                `yaml:"llm" mapstructure:"llm"`
	Redact    RedactConfig             `yaml:"redact" mapstructure:"redact"`
	Review    ReviewConfig             `yaml:"review" mapstructure:"review"`
	Ingest    IngestConfig             `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig             `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig               `yaml:"auth" mapstructure:"auth"`
	Log       LogConfig                `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SchemaConfig points at the field schema definition file.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ParsersConfig configures the parser fallback chains and shared adapter
// behavior. Chains map a mime type to an ordered list of parser names; the
// "*" key is the fallback chain for unlisted types.
type ParsersConfig struct {
	Chains             map[string][]string `yaml:"chains" mapstructure:"chains"`
	AdapterTimeoutSecs int                 `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
}

// ServiceConfig holds one external parsing service's connection settings.
type ServiceConfig struct {
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
	Key        string   `yaml:"key" mapstructure:"key"`
	RatePerSec float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Retries    int      `yaml:"retries" mapstructure:"retries"`
	MimeTypes  []string `yaml:"mime_types" mapstructure:"mime_types"`
	Confidence float64  `yaml:"confidence" mapstructure:"confidence"`
}

// LLMConfig holds Anthropic API settings for the field supplement pass.
type LLMConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// RedactConfig configures the PII redaction service.
type RedactConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// ReviewConfig configures queueing thresholds and claim behavior.
type ReviewConfig struct {
	ConfidenceThreshold  float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	FieldConfidenceFloor float64 `yaml:"field_confidence_floor" mapstructure:"field_confidence_floor"`
	FallbackParser       string  `yaml:"fallback_parser" mapstructure:"fallback_parser"`
	ClaimTimeoutMins     int     `yaml:"claim_timeout_mins" mapstructure:"claim_timeout_mins"`
}

// ClaimTimeout returns the configured claim timeout as a duration.
func (c ReviewConfig) ClaimTimeout() time.Duration {
	return time.Duration(c.ClaimTimeoutMins) * time.Minute
}

// IngestConfig configures batch document ingestion.
type IngestConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AuthConfig maps bearer tokens to tenant IDs. Tokens are opaque strings
// issued out of band.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens" mapstructure:"tokens"`
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
	v.SetEnvPrefix("DOCPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("schema.path", "schema.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("parsers.adapter_timeout_secs", 60)
	v.SetDefault("parsers.chains", map[string][]string{
		"application/pdf": {"docuparse", "formworks", "pdftext"},
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {"xlsxparse"},
		"*": {"docuparse", "pdftext"},
	})
	v.SetDefault("review.confidence_threshold", 0.85)
	v.SetDefault("review.field_confidence_floor", 0.70)
	v.SetDefault("review.fallback_parser", "pdftext")
	v.SetDefault("review.claim_timeout_mins", 30)
	v.SetDefault("ingest.max_concurrent", 4)
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.key", "")
	v.SetDefault("redact.base_url", "")
	v.SetDefault("redact.key", "")

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
