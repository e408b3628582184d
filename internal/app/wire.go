package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	s3blob "github.com/evbets/evboard/internal/blob/s3"
	"github.com/evbets/evboard/internal/cache/memory"
	"github.com/evbets/evboard/internal/cache/redis"
	"github.com/evbets/evboard/internal/catalog"
	"github.com/evbets/evboard/internal/config"
	"github.com/evbets/evboard/internal/crypto"
	"github.com/evbets/evboard/internal/domain"
	"github.com/evbets/evboard/internal/notify"
	"github.com/evbets/evboard/internal/observability"
	"github.com/evbets/evboard/internal/platform/oddsapi"
	"github.com/evbets/evboard/internal/server/handler"
	memstore "github.com/evbets/evboard/internal/store/memory"
	"github.com/evbets/evboard/internal/store/postgres"
)

// Dependencies bundles the concrete backends the run modes need. Wire builds
// it; the returned cleanup function releases it.
type Dependencies struct {
	Catalog *catalog.Catalog

	// Feed is nil in replay mode.
	Feed *oddsapi.Client

	// Stores
	Bookmarks domain.BookmarkStore
	Audit     domain.AuditStore

	// Caches and coordination. Locks and RateLimiter are nil without Redis.
	QuoteCache  domain.QuoteCache
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage, nil unless s3.enabled.
	Archiver   *s3blob.Archiver
	BlobReader domain.BlobReader

	// Notifier is nil when no alert channel is configured.
	Notifier *notify.Notifier
	Metrics  *observability.Metrics

	// Checks are the health probes of every connected backend.
	Checks map[string]handler.Check
}

// Wire constructs every backend selected by cfg.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(stage string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", stage, err)
	}

	deps := &Dependencies{
		Metrics: observability.NewMetrics("evboard", prometheus.NewRegistry()),
		Checks:  make(map[string]handler.Check),
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fail("catalog", err)
	}
	deps.Catalog = cat

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient.Ping
		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.SignalBus = memory.NewSignalBus()
	}

	switch cfg.Cache.Backend {
	case "redis":
		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Cache.TTL.Duration)
	default:
		deps.QuoteCache = memory.NewQuoteCache(uint(cfg.Cache.LRUCapacity), cfg.Cache.TTL.Duration)
	}

	// --- Bookmark + audit stores ---
	switch cfg.Bookmarks.Backend {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Supabase.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Checks["postgres"] = pg.Ping
		deps.Bookmarks = postgres.NewBookmarkStore(pg.Pool())
		deps.Audit = postgres.NewAuditStore(pg.Pool())
	case "redis":
		deps.Bookmarks = redis.NewBookmarkStore(redisClient)
		deps.Audit = memstore.NewAuditStore()
	default:
		deps.Bookmarks = memstore.NewBookmarkStore()
		deps.Audit = memstore.NewAuditStore()
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Checks["s3"] = s3Client.Health
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Audit)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Feed client ---
	if strings.ToLower(cfg.Mode) != "replay" {
		apiKey, err := crypto.LoadSecret(crypto.SecretSource{
			Plain:      cfg.Feed.APIKey,
			SealedPath: cfg.Feed.EncryptedKeyPath,
			Password:   cfg.Feed.KeyPassword,
		})
		if err != nil {
			return fail("feed api key", err)
		}
		var opts []oddsapi.Option
		if deps.RateLimiter != nil && cfg.Feed.RequestsPerMinute > 0 {
			opts = append(opts, oddsapi.WithRateLimiter(deps.RateLimiter, cfg.Feed.RequestsPerMinute))
		}
		deps.Feed = oddsapi.NewClient(cfg.Feed.BaseURL, apiKey, cfg.Feed.Timeout.Duration, opts...)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			// A bad token must not keep the board from starting.
			logger.WarnContext(ctx, "telegram disabled", slog.String("error", err.Error()))
		} else {
			senders = append(senders, tg)
		}
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if n := notify.NewNotifier(senders, cfg.Notify.Events, logger); n.Enabled() {
		deps.Notifier = n
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("bookmarks", cfg.Bookmarks.Backend),
		slog.String("cache", cfg.Cache.Backend),
		slog.Bool("redis", redisClient != nil),
		slog.Bool("s3", deps.Archiver != nil),
		slog.Int("alert_channels", len(senders)),
		slog.Int("bookmakers", len(cat.Bookmakers)),
	)
	return deps, cleanup, nil
}

// rateWindow is the window of server.rate_limit.
const rateWindow = time.Minute
