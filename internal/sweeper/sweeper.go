// Package sweeper discards collection sessions left idle, on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"transrelay/pkg/collect"
	"transrelay/pkg/logger"
)

// DefaultCron runs a sweep every ten minutes.
const DefaultCron = "*/10 * * * *"

// Expirer drops sessions idle for longer than ttl.
type Expirer interface {
	Expire(ctx context.Context, ttl time.Duration) []collect.Expired
}

type Config struct {
	Enabled bool
	Cron    string
	TTL     time.Duration
}

// Start launches the scheduler when enabled. The returned func stops it.
func Start(ctx context.Context, cfg Config, target Expirer) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweeper_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid sweeper cron expression: %s", cronExpr)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("sweeper ttl must be positive, got %s", cfg.TTL)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, cfg.TTL, target)
	logger.Info("sweeper_started", "cron", cronExpr, "ttl", cfg.TTL)
	return cancel, nil
}

// RunOnce performs a single sweep and returns how many sessions it dropped.
func RunOnce(ctx context.Context, ttl time.Duration, target Expirer) int {
	expired := target.Expire(ctx, ttl)
	if len(expired) > 0 {
		logger.Info("sweeper_run", "expired", len(expired))
	}
	return len(expired)
}

// nextWait is the delay from now until the next tick of cronExpr.
func nextWait(cronExpr string, now time.Time) (time.Duration, error) {
	next, err := gronx.NextTickAfter(cronExpr, now, false)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}

func runScheduler(ctx context.Context, cronExpr string, ttl time.Duration, target Expirer) {
	for {
		wait, err := nextWait(cronExpr, time.Now().UTC())
		if err != nil {
			logger.Error("sweeper_nexttick_failed", "cron", cronExpr, "error", err)
			wait = 30 * time.Second
		} else if wait < time.Second {
			wait = time.Second
		}

		select {
		case <-time.After(wait):
			if err == nil {
				RunOnce(ctx, ttl, target)
			}
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		}
	}
}
