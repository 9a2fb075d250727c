package core

// scheduler.go runs maintenance jobs on a cron schedule.
//
// The activity log retention job deletes entries older than the configured
// retention. A failed run is logged and retried on the next tick; it never
// stops the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures the activity retention job.
type RetentionConfig struct {
	Schedule  string        // Standard 5-field cron spec, e.g. "0 3 * * *"
	Retention time.Duration // Entries older than this are purged
	Timeout   time.Duration // Per-run bound (default: 5m)
}

// StartActivityRetention schedules the purge job and starts the scheduler.
// The scheduler stops when ctx is cancelled; the returned Cron can also be
// stopped directly.
func (s *Service) StartActivityRetention(ctx context.Context, cfg RetentionConfig) (*cron.Cron, error) {
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("activity retention must be positive, got %s", cfg.Retention)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		s.runRetentionJob(ctx, cfg)
	}); err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", cfg.Schedule, err)
	}

	c.Start()
	slog.Info("activity retention scheduler started",
		"schedule", cfg.Schedule,
		"retention", cfg.Retention.String(),
	)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("activity retention scheduler stopped")
	}()

	return c, nil
}

// runRetentionJob performs one purge.
func (s *Service) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	purged, err := s.PurgeActivity(runCtx, cfg.Retention)
	if err != nil {
		slog.Error("activity purge failed", "error", err)
		return
	}
	slog.Info("activity purge completed",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
