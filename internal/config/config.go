// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.loaf/config.yaml)
//  3. Default values
//
// Sensitive fields (tokens, passwords) are masked in MarshalJSON and
// never logged in the clear.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidChunkStrategy indicates an unknown chunking strategy name.
	ErrInvalidChunkStrategy = errors.New("invalid chunk strategy")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidReplyMode indicates an unknown reply mode.
	ErrInvalidReplyMode = errors.New("invalid reply mode")

	// ErrInvalidInterval indicates a non-positive polling interval.
	ErrInvalidInterval = errors.New("invalid polling interval")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrMissingNotionToken indicates a Notion command was run without a token.
	ErrMissingNotionToken = errors.New("missing Notion token")

	// ErrMissingMastodonToken indicates a Mastodon command was run without a token.
	ErrMissingMastodonToken = errors.New("missing Mastodon token")
)

// DefaultEmbedderModel truncates to 768 dimensions, matching the
// vector column in the fragments table.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// AI models
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Notion source
	NotionToken   string   `mapstructure:"notion_token" json:"notion_token"` // SENSITIVE: masked in MarshalJSON
	NotionPageIDs []string `mapstructure:"notion_page_ids" json:"notion_page_ids"`

	// Mastodon feed
	MastodonBaseURL string `mapstructure:"mastodon_base_url" json:"mastodon_base_url"`
	MastodonToken   string `mapstructure:"mastodon_token" json:"mastodon_token"` // SENSITIVE: masked in MarshalJSON
	MastodonAcct    string `mapstructure:"mastodon_acct" json:"mastodon_acct"`

	// Chunking
	ChunkStrategy string `mapstructure:"chunk_strategy" json:"chunk_strategy"`
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`

	// Polling
	DocumentInterval time.Duration `mapstructure:"document_interval" json:"document_interval"`
	MentionInterval  time.Duration `mapstructure:"mention_interval" json:"mention_interval"`

	// Reply behavior
	ReplyMode  string `mapstructure:"reply_mode" json:"reply_mode"`
	Disclosure string `mapstructure:"disclosure" json:"disclosure"`

	// Review server
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".loaf")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "loaf")
	viper.SetDefault("postgres_password", "loaf_dev_password")
	viper.SetDefault("postgres_db_name", "loaf")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("mastodon_base_url", "https://mastodon.social")

	viper.SetDefault("chunk_strategy", "paragraphs")
	viper.SetDefault("chunk_size", 800)

	viper.SetDefault("document_interval", "10m")
	viper.SetDefault("mention_interval", "2m")

	viper.SetDefault("reply_mode", "draft")
	viper.SetDefault("disclosure", "")

	viper.SetDefault("serve_addr", "localhost:8080")
}

// bindEnvVariables binds secrets and common overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("notion_token", "NOTION_TOKEN")
	mustBind("mastodon_token", "MASTODON_TOKEN")
	mustBind("mastodon_base_url", "MASTODON_BASE_URL")

	mustBind("log_level", "LOAF_LOG_LEVEL")
	mustBind("model_name", "LOAF_MODEL_NAME")
	mustBind("reply_mode", "LOAF_REPLY_MODE")
}

// maskedValue avoids substring matching against real secret contents.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(*c)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	masked.NotionToken = maskSecret(c.NotionToken)
	masked.MastodonToken = maskSecret(c.MastodonToken)
	return json.Marshal(masked)
}
