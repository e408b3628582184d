package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evbets/evboard/internal/pipeline"
	"github.com/evbets/evboard/internal/platform/oddsapi"
	"github.com/evbets/evboard/internal/server"
	"github.com/evbets/evboard/internal/server/handler"
	"github.com/evbets/evboard/internal/server/ws"
	"github.com/evbets/evboard/internal/service"
	"github.com/evbets/evboard/internal/valuebet"
)

// services are the domain services shared by every mode.
type services struct {
	feed      *service.FeedService
	bookmarks *service.BookmarkService
	views     *service.ViewService
	tally     *valuebet.Tally
}

func (a *App) buildServices(deps *Dependencies) services {
	tally := valuebet.NewTally()
	observers := []valuebet.Observer{deps.Metrics.Observer(), tally}
	if a.cfg.Pipeline.LogRejections {
		observers = append(observers, valuebet.NewLogObserver(a.logger, slog.LevelDebug))
	}
	observer := valuebet.Multi(observers...)

	fd := service.FeedDeps{
		Catalog: deps.Catalog,
		Preparer: valuebet.Preparer{
			Policy:   valuebet.PolicyFromCatalog(deps.Catalog),
			Horizon:  a.cfg.Pipeline.Horizon.Duration,
			Observer: observer,
		},
		Cache:   deps.QuoteCache,
		Locks:   deps.Locks,
		LockTTL: a.cfg.Pipeline.LockTTL.Duration,
		Bus:     deps.SignalBus,
		Audit:   deps.Audit,
		Metrics: deps.Metrics,
		Logger:  a.logger,
	}
	// Assigning a nil *oddsapi.Client or *s3blob.Archiver would produce a
	// non-nil interface.
	if deps.Feed != nil {
		fd.Source = deps.Feed
	}
	if deps.Archiver != nil && a.cfg.Pipeline.ArchiveRaw {
		fd.Archiver = deps.Archiver
		fd.ArchivePrefix = a.cfg.Pipeline.ArchivePrefix
	}
	feed := service.NewFeedService(fd)
	if b := a.cfg.Feed.DefaultBookmaker; b != "" {
		if err := feed.Select(context.Background(), b); err != nil {
			a.logger.Warn("default bookmaker ignored",
				slog.String("bookmaker", b),
				slog.String("error", err.Error()),
			)
		}
	}

	opts := []service.BookmarkOption{
		service.WithBookmarkAudit(deps.Audit),
		service.WithBookmarkBus(deps.SignalBus),
		service.WithBookmarkMetrics(deps.Metrics),
	}
	if deps.Archiver != nil {
		opts = append(opts, service.WithBookmarkExport(deps.Archiver, a.cfg.Bookmarks.ExportPrefix))
	}
	bookmarks := service.NewBookmarkService(deps.Bookmarks, a.logger, opts...)

	views := service.NewViewService(feed, bookmarks, deps.Catalog.LeagueNames(), observer, a.logger)

	return services{feed: feed, bookmarks: bookmarks, views: views, tally: tally}
}

// buildPipeline assembles the refresher, the alert scanner and the export
// scheduler.
func (a *App) buildPipeline(deps *Dependencies, svc services) (*pipeline.Refresher, *pipeline.Orchestrator, error) {
	refresher := pipeline.NewRefresher(svc.feed, a.logger)

	// Without a notifier alerts still reach websocket viewers through the bus.
	alerts := pipeline.NewAlertScanner(alertNotifier(deps), deps.SignalBus, deps.Metrics,
		a.cfg.Notify.MinEV, a.cfg.Notify.DedupTTL.Duration, a.logger)

	var exports *pipeline.ExportScheduler
	if expr := a.cfg.Bookmarks.ExportCron; expr != "" {
		var err error
		exports, err = pipeline.NewExportScheduler(svc.bookmarks, expr, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("app: export schedule: %w", err)
		}
	}

	orch := pipeline.NewOrchestrator(refresher, a.cfg.Pipeline.RefreshInterval.Duration, alerts, exports, a.logger)
	return refresher, orch, nil
}

// ServerMode runs the refresh pipeline behind the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svc := a.buildServices(deps)
	refresher, orch, err := a.buildPipeline(deps, svc)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(ctx) })

	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false, running the pipeline only")
		return g.Wait()
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, func() any {
		return map[string]any{
			"mode":           a.cfg.Mode,
			"feed":           service.StatusOf(svc.feed.State()),
			"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		}
	}, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  rateWindow,
		Limiter:     deps.RateLimiter,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(deps.Checks, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.startedAt, svc.feed),
		Feed:      handler.NewFeedHandler(svc.feed, refresher, deps.Catalog, a.logger),
		View:      handler.NewViewHandler(svc.views, a.logger),
		Bookmarks: handler.NewBookmarkHandler(svc.bookmarks, svc.views, a.logger),
	}, hub, deps.Metrics, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// PollMode refreshes the feed and sends alerts without serving HTTP.
func (a *App) PollMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting poll mode")

	svc := a.buildServices(deps)
	_, orch, err := a.buildPipeline(deps, svc)
	if err != nil {
		return err
	}
	return orch.Run(ctx)
}

// ReplayMode runs the pipeline once over an archived raw response and logs
// the outcome. replay_path "latest" picks the newest archive of the default
// bookmaker.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")
	if deps.BlobReader == nil {
		return errors.New("app: replay mode requires s3")
	}

	src := oddsapi.NewArchiveSource(deps.BlobReader, a.cfg.Pipeline.ArchivePrefix)
	p := a.cfg.Pipeline.ReplayPath
	if p == "latest" {
		bookmaker := a.cfg.Feed.DefaultBookmaker
		if bookmaker == "" {
			bookmaker = deps.Catalog.DefaultBookmaker()
		}
		latest, err := src.Latest(ctx, bookmaker)
		if err != nil {
			return fmt.Errorf("app: replay: %w", err)
		}
		p = latest
	}

	resp, err := src.Load(ctx, p)
	if err != nil {
		return fmt.Errorf("app: replay: %w", err)
	}

	svc := a.buildServices(deps)
	snap, err := svc.feed.Apply(ctx, resp)
	if err != nil {
		return fmt.Errorf("app: replay: %w", err)
	}

	alerts := pipeline.NewAlertScanner(alertNotifier(deps), deps.SignalBus, deps.Metrics,
		a.cfg.Notify.MinEV, a.cfg.Notify.DedupTTL.Duration, a.logger)
	alerted := alerts.Scan(ctx, snap)

	a.logger.InfoContext(ctx, "replay finished",
		slog.String("path", p),
		slog.String("bookmaker", snap.Bookmaker),
		slog.String("shape", string(snap.Shape)),
		slog.Int("total", snap.Summary.Total),
		slog.Int("invalid_date", snap.Summary.InvalidDate),
		slog.Int("too_far", snap.Summary.TooFar),
		slog.Int("filtered", snap.Summary.SportLeagueFiltered),
		slog.Int("remaining", snap.Summary.Remaining),
		slog.Int("alerts", alerted),
	)
	for _, row := range svc.tally.Rows() {
		a.logger.InfoContext(ctx, "replay outcome",
			slog.String("stage", string(row.Stage)),
			slog.String("reason", string(row.Reason)),
			slog.Int("count", row.Count),
		)
	}
	a.logger.InfoContext(ctx, "replay groups", slog.Int("groups", len(valuebet.GroupByEvent(snap.Quotes))))
	return nil
}

// alertNotifier keeps a missing notifier a nil interface.
func alertNotifier(deps *Dependencies) pipeline.AlertNotifier {
	if deps.Notifier == nil {
		return nil
	}
	return deps.Notifier
}
