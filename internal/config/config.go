// Package config defines the top-level configuration for evboard and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by EVBOARD_* environment variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Bookmarks BookmarksConfig `toml:"bookmarks"`
	Cache     CacheConfig     `toml:"cache"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig holds the value-bet feed endpoint and credentials. The API key
// can be given in clear text or as a password-protected key file produced by
// cmd/keytool.
type FeedConfig struct {
	BaseURL          string   `toml:"base_url"`
	APIKey           string   `toml:"api_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	Timeout          duration `toml:"timeout"`
	DefaultBookmaker string   `toml:"default_bookmaker"`
	// RequestsPerMinute caps outbound feed calls across replicas when Redis
	// is enabled. Zero disables the limit.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// CatalogConfig points at the sport/league/bookmaker catalog. An empty path
// selects the built-in catalog.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// PipelineConfig holds refresh and preparation parameters.
type PipelineConfig struct {
	Horizon         duration `toml:"horizon"`
	RefreshInterval duration `toml:"refresh_interval"`
	ArchiveRaw      bool     `toml:"archive_raw"`
	ArchivePrefix   string   `toml:"archive_prefix"`
	ReplayPath      string   `toml:"replay_path"`
	LockTTL         duration `toml:"lock_ttl"`
	LogRejections   bool     `toml:"log_rejections"`
}

// BookmarksConfig selects the bookmark store backend.
type BookmarksConfig struct {
	Backend      string `toml:"backend"`
	ExportPrefix string `toml:"export_prefix"`
	// ExportCron schedules periodic exports to S3 ("minute hour dom month
	// dow"). Empty disables scheduled exports.
	ExportCron string `toml:"export_cron"`
}

// CacheConfig selects the prepared-snapshot cache backend.
type CacheConfig struct {
	Backend     string   `toml:"backend"`
	LRUCapacity int      `toml:"lru_capacity"`
	TTL         duration `toml:"ttl"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds alert channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    int64    `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinEV             float64  `toml:"min_ev"`
	DedupTTL          duration `toml:"dedup_ttl"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			BaseURL: "https://api.odds-api.io",
			Timeout: duration{30 * time.Second},
		},
		Pipeline: PipelineConfig{
			Horizon:         duration{72 * time.Hour},
			RefreshInterval: duration{time.Minute},
			ArchivePrefix:   "raw",
			LockTTL:         duration{30 * time.Second},
		},
		Bookmarks: BookmarksConfig{
			Backend:      "memory",
			ExportPrefix: "bookmarks",
		},
		Cache: CacheConfig{
			Backend:     "memory",
			LRUCapacity: 64,
			TTL:         duration{10 * time.Minute},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "evboard-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events:   []string{"high_ev", "fetch_failed"},
			MinEV:    110,
			DedupTTL: duration{6 * time.Hour},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"poll":   true,
	"replay": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBookmarkBackends = map[string]bool{
	"memory":   true,
	"postgres": true,
	"redis":    true,
}

var validCacheBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, poll, replay)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if mode != "replay" {
		if c.Feed.BaseURL == "" {
			errs = append(errs, "feed: base_url must not be empty")
		}
		if c.Feed.APIKey == "" && c.Feed.EncryptedKeyPath == "" {
			errs = append(errs, "feed: either api_key or encrypted_key_path must be set")
		}
	}
	if c.Feed.EncryptedKeyPath != "" && c.Feed.KeyPassword == "" {
		errs = append(errs, "feed: key_password is required when encrypted_key_path is set")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be > 0")
	}
	if c.Feed.RequestsPerMinute < 0 {
		errs = append(errs, "feed: requests_per_minute must be >= 0")
	}

	// Pipeline
	if c.Pipeline.Horizon.Duration <= 0 {
		errs = append(errs, "pipeline: horizon must be > 0")
	}
	if c.Pipeline.RefreshInterval.Duration < time.Second {
		errs = append(errs, "pipeline: refresh_interval must be at least 1s")
	}
	if c.Pipeline.ArchiveRaw && !c.S3.Enabled {
		errs = append(errs, "pipeline: archive_raw requires s3.enabled")
	}
	if mode == "replay" {
		if !c.S3.Enabled {
			errs = append(errs, "pipeline: replay mode requires s3.enabled")
		}
		if c.Pipeline.ReplayPath == "" {
			errs = append(errs, "pipeline: replay_path is required for replay mode")
		}
	}

	// Bookmarks / cache backends
	if !validBookmarkBackends[c.Bookmarks.Backend] {
		errs = append(errs, fmt.Sprintf("bookmarks: unknown backend %q (valid: memory, postgres, redis)", c.Bookmarks.Backend))
	}
	if c.Bookmarks.Backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, "bookmarks: redis backend requires redis.enabled")
	}
	if !validCacheBackends[c.Cache.Backend] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}
	if c.Bookmarks.ExportCron != "" && !c.S3.Enabled {
		errs = append(errs, "bookmarks: export_cron requires s3.enabled")
	}
	if c.Cache.Backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, "cache: redis backend requires redis.enabled")
	}
	if c.Cache.Backend == "memory" && c.Cache.LRUCapacity < 1 {
		errs = append(errs, "cache: lru_capacity must be >= 1")
	}

	// Supabase
	if c.Bookmarks.Backend == "postgres" {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled")
		}
	}

	// Notify
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}
	if c.Notify.MinEV <= 100 {
		errs = append(errs, "notify: min_ev must be > 100")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
