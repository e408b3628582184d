package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// BookmarkExporter writes one bookmark export and returns its key.
type BookmarkExporter interface {
	Export(ctx context.Context) (string, error)
}

// ExportScheduler exports bookmarks on a cron schedule.
type ExportScheduler struct {
	exporter BookmarkExporter
	schedule Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// NewExportScheduler parses cronExpr and returns a scheduler for exporter.
func NewExportScheduler(exporter BookmarkExporter, cronExpr string, logger *slog.Logger) (*ExportScheduler, error) {
	sched, err := ParseSchedule(cronExpr)
	if err != nil {
		return nil, err
	}
	return &ExportScheduler{
		exporter: exporter,
		schedule: sched,
		logger:   logger.With(slog.String("component", "export_scheduler")),
		now:      time.Now,
	}, nil
}

// Run waits for each scheduled minute and exports, until ctx is cancelled.
// A failed export is logged and the schedule continues.
func (e *ExportScheduler) Run(ctx context.Context) error {
	for {
		now := e.now().UTC()
		next, ok := e.schedule.Next(now)
		if !ok {
			return fmt.Errorf("export scheduler: %s never fires", e.schedule.expr)
		}
		e.logger.DebugContext(ctx, "next bookmark export", slog.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := e.exporter.Export(ctx); err != nil {
			e.logger.ErrorContext(ctx, "scheduled bookmark export failed", slog.String("error", err.Error()))
		}
	}
}

// Schedule is a parsed five-field cron expression: minute, hour, day of
// month, month, day of week. Each field is "*", "*/step", or a comma list
// of values and lo-hi ranges.
type Schedule struct {
	expr   string
	fields [5][]int // nil means any
}

var scheduleBounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

var scheduleNames = [5]string{"minute", "hour", "day of month", "month", "day of week"}

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("schedule %q: want 5 fields, got %d", expr, len(parts))
	}
	s := Schedule{expr: expr}
	for i, p := range parts {
		vals, err := parseScheduleField(p, scheduleBounds[i][0], scheduleBounds[i][1])
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule %q: %s: %w", expr, scheduleNames[i], err)
		}
		s.fields[i] = vals
	}
	return s, nil
}

func parseScheduleField(field string, lo, hi int) ([]int, error) {
	if field == "*" {
		return nil, nil
	}
	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad step %q", step)
		}
		var vals []int
		for v := lo; v <= hi; v += n {
			vals = append(vals, v)
		}
		return vals, nil
	}

	var vals []int
	for _, item := range strings.Split(field, ",") {
		from, to, isRange := strings.Cut(item, "-")
		a, err := strconv.Atoi(from)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", item)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(to); err != nil {
				return nil, fmt.Errorf("bad value %q", item)
			}
		}
		if a < lo || b > hi || a > b {
			return nil, fmt.Errorf("%q outside %d-%d", item, lo, hi)
		}
		for v := a; v <= b; v++ {
			vals = append(vals, v)
		}
	}
	return vals, nil
}

func (s Schedule) matches(t time.Time) bool {
	got := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, vals := range s.fields {
		if vals != nil && !slices.Contains(vals, got[i]) {
			return false
		}
	}
	return true
}

// Next returns the first matching minute strictly after t, searching at
// most a year ahead.
func (s Schedule) Next(t time.Time) (time.Time, bool) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	for limit := t.AddDate(1, 0, 1); c.Before(limit); c = c.Add(time.Minute) {
		if s.matches(c) {
			return c, true
		}
	}
	return time.Time{}, false
}
