// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MARKETBOT_*, runtime override)
//  2. Config file (~/.marketbot/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model, persona preamble
//   - Corpus: documents directory, chunk size/overlap, index snapshot path
//   - Retrieval: top-k
//   - Sessions: history window, idle TTL
//   - Storage: index backend (memory or postgres) and PostgreSQL connection
//   - Server: listen address, CORS origins, rate limiting
//   - Tracing: OTLP collector endpoint
//
// Security: the PostgreSQL password is masked in MarshalJSON; never log the
// raw Config without going through JSON marshaling.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidDocumentsDir indicates the documents directory is not set.
	ErrInvalidDocumentsDir = errors.New("invalid documents directory")

	// ErrInvalidStorageBackend indicates an unknown index storage backend.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")

	// ErrInvalidPostgres indicates incomplete PostgreSQL settings for the
	// postgres storage backend.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Index storage backends used in Config.StorageBackend.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Defaults mirroring the reference deployment: 1000-char chunks with
// 200-char overlap, top-6 retrieval, 10-exchange history window.
const (
	DefaultChunkSize     = 1000
	DefaultChunkOverlap  = 200
	DefaultTopK          = 6
	DefaultHistoryWindow = 20 // turns; 10 user/assistant exchanges
	DefaultSessionTTL    = 30 * time.Minute
	DefaultHTTPAddr      = ":8080"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`             // "gemini" (default) or "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`         // e.g. "gemini-2.5-flash", "gpt-4o-mini"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"` // must match between indexing and querying
	Persona       string `mapstructure:"persona" json:"persona"`               // prompt preamble; empty uses the built-in default

	// Corpus and index configuration
	DocumentsDir string `mapstructure:"documents_dir" json:"documents_dir"`
	SnapshotPath string `mapstructure:"snapshot_path" json:"snapshot_path"` // empty disables snapshotting
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Session configuration
	HistoryWindow int           `mapstructure:"history_window" json:"history_window"` // turns sent to the model
	SessionTTL    time.Duration `mapstructure:"session_ttl" json:"session_ttl"`      // idle eviction; 0 disables

	// Index storage backend: "memory" (default) or "postgres"
	StorageBackend string `mapstructure:"storage_backend" json:"storage_backend"`

	// PostgreSQL connection (postgres backend only)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"` // per-IP burst; 0 uses the server default
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Tracing configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"` // empty disables tracing
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".marketbot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("MARKETBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes highest priority for PostgreSQL settings, matching
	// common container platform conventions.
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		if err := cfg.applyDatabaseURL(raw); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// setDefaults registers default values on the given viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")

	v.SetDefault("documents_dir", "documents")
	v.SetDefault("snapshot_path", "index.snapshot.json")
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("session_ttl", DefaultSessionTTL)

	v.SetDefault("storage_backend", StorageMemory)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "marketbot")
	v.SetDefault("postgres_db_name", "marketbot")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("cors_origins", []string{})

	v.SetDefault("service_name", "marketbot")
	v.SetDefault("environment", "dev")
}

// applyDatabaseURL overrides the PostgreSQL fields from a postgres:// URL.
func (c *Config) applyDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: DATABASE_URL scheme %q", ErrInvalidPostgres, u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &c.PostgresPort); err != nil {
			return fmt.Errorf("parsing DATABASE_URL port: %w", err)
		}
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// PostgresURL returns the connection string in URL form, as required by
// golang-migrate and pgxpool.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	if c.PostgresPassword != "" {
		u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
	} else {
		u.User = url.User(c.PostgresUser)
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks the configuration for correctness. Errors are sentinel
// values wrapped with detail, so callers can errors.Is() on them.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOpenAI)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d must be positive", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, %d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k %d must be positive", ErrInvalidTopK, c.TopK)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("%w: history_window %d must be positive",
			ErrInvalidHistoryWindow, c.HistoryWindow)
	}
	if c.DocumentsDir == "" {
		return fmt.Errorf("%w: documents_dir is empty", ErrInvalidDocumentsDir)
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDBName == "" {
			return fmt.Errorf("%w: host, user and db_name are required", ErrInvalidPostgres)
		}
		if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidStorageBackend, c.StorageBackend, StorageMemory, StoragePostgres)
	}

	return nil
}

// MarshalJSON masks sensitive fields so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = "********"
	}
	return json.Marshal(a)
}
