package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EVBOARD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EVBOARD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "EVBOARD_FEED_BASE_URL")
	setStr(&cfg.Feed.APIKey, "EVBOARD_FEED_API_KEY")
	setStr(&cfg.Feed.EncryptedKeyPath, "EVBOARD_FEED_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Feed.KeyPassword, "EVBOARD_FEED_KEY_PASSWORD")
	setDuration(&cfg.Feed.Timeout, "EVBOARD_FEED_TIMEOUT")
	setStr(&cfg.Feed.DefaultBookmaker, "EVBOARD_FEED_DEFAULT_BOOKMAKER")
	setInt(&cfg.Feed.RequestsPerMinute, "EVBOARD_FEED_REQUESTS_PER_MINUTE")

	// ── Catalog ──
	setStr(&cfg.Catalog.Path, "EVBOARD_CATALOG_PATH")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.Horizon, "EVBOARD_PIPELINE_HORIZON")
	setDuration(&cfg.Pipeline.RefreshInterval, "EVBOARD_PIPELINE_REFRESH_INTERVAL")
	setBool(&cfg.Pipeline.ArchiveRaw, "EVBOARD_PIPELINE_ARCHIVE_RAW")
	setStr(&cfg.Pipeline.ArchivePrefix, "EVBOARD_PIPELINE_ARCHIVE_PREFIX")
	setStr(&cfg.Pipeline.ReplayPath, "EVBOARD_PIPELINE_REPLAY_PATH")
	setDuration(&cfg.Pipeline.LockTTL, "EVBOARD_PIPELINE_LOCK_TTL")
	setBool(&cfg.Pipeline.LogRejections, "EVBOARD_PIPELINE_LOG_REJECTIONS")

	// ── Bookmarks / cache ──
	setStr(&cfg.Bookmarks.Backend, "EVBOARD_BOOKMARKS_BACKEND")
	setStr(&cfg.Bookmarks.ExportPrefix, "EVBOARD_BOOKMARKS_EXPORT_PREFIX")
	setStr(&cfg.Bookmarks.ExportCron, "EVBOARD_BOOKMARKS_EXPORT_CRON")
	setStr(&cfg.Cache.Backend, "EVBOARD_CACHE_BACKEND")
	setInt(&cfg.Cache.LRUCapacity, "EVBOARD_CACHE_LRU_CAPACITY")
	setDuration(&cfg.Cache.TTL, "EVBOARD_CACHE_TTL")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "EVBOARD_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "EVBOARD_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "EVBOARD_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "EVBOARD_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "EVBOARD_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "EVBOARD_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "EVBOARD_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "EVBOARD_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "EVBOARD_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "EVBOARD_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "EVBOARD_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "EVBOARD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EVBOARD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EVBOARD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EVBOARD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EVBOARD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EVBOARD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EVBOARD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EVBOARD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EVBOARD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EVBOARD_S3_REGION")
	setStr(&cfg.S3.Bucket, "EVBOARD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EVBOARD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EVBOARD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EVBOARD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EVBOARD_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "EVBOARD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "EVBOARD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "EVBOARD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "EVBOARD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "EVBOARD_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EVBOARD_NOTIFY_TELEGRAM_TOKEN")
	setInt64(&cfg.Notify.TelegramChatID, "EVBOARD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EVBOARD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EVBOARD_NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.MinEV, "EVBOARD_NOTIFY_MIN_EV")
	setDuration(&cfg.Notify.DedupTTL, "EVBOARD_NOTIFY_DEDUP_TTL")

	// ── Top-level ──
	setStr(&cfg.Mode, "EVBOARD_MODE")
	setStr(&cfg.LogLevel, "EVBOARD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
