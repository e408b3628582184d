// Package pipeline runs the background work around the feed: the refresh
// loop, high-EV alerting and scheduled bookmark exports.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the refresher and, when configured, the alert scanner
// and export scheduler.
type Orchestrator struct {
	refresher *Refresher
	interval  time.Duration
	alerts    *AlertScanner
	exports   *ExportScheduler
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. alerts and exports may be nil.
// When alerts is set it is hooked to the refresher here.
func NewOrchestrator(refresher *Refresher, interval time.Duration, alerts *AlertScanner, exports *ExportScheduler, logger *slog.Logger) *Orchestrator {
	if alerts != nil {
		refresher.OnSnapshot(alerts.Submit)
		refresher.OnError(alerts.SubmitFailure)
	}
	return &Orchestrator{
		refresher: refresher,
		interval:  interval,
		alerts:    alerts,
		exports:   exports,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run blocks until ctx is cancelled or a sub-task fails. Cancellation is a
// clean shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline starting",
		slog.Duration("refresh_interval", o.interval),
		slog.Bool("alerts", o.alerts != nil),
		slog.Bool("scheduled_exports", o.exports != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.refresher.RunLoop(ctx, o.interval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("refresher: %w", err)
	})

	if o.alerts != nil {
		g.Go(func() error {
			err := o.alerts.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("alert scanner: %w", err)
		})
	}

	if o.exports != nil {
		g.Go(func() error {
			err := o.exports.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("export scheduler: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline stopped")
	return nil
}
