package cache

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Start performs the warmup build for today, then rebuilds on the configured
// cron schedule until ctx is cancelled. It returns an error only for an
// invalid schedule.
func (c *DailyCache) Start(ctx context.Context) error {
	sched := cron.New(cron.WithLocation(c.obs.Location()))
	if _, err := sched.AddFunc(c.config.Schedule, func() { c.tick(ctx) }); err != nil {
		return fmt.Errorf("cache schedule %q: %w", c.config.Schedule, err)
	}

	c.warmup(ctx)

	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	c.logger.Info("cache generator stopped")
	return nil
}

// warmup builds today's entry. Readiness is signalled even when the build
// fails, so that requests fall through to on-demand computation.
func (c *DailyCache) warmup(ctx context.Context) {
	defer c.ready.Store(true)

	c.logger.Info("cache warmup starting", "day", c.DayKey(c.now()))
	if _, err := c.Rebuild(ctx, c.now()); err != nil {
		c.logger.Warn("cache warmup failed", "error", err)
	}
}

// tick runs one scheduled rebuild.
func (c *DailyCache) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := c.Rebuild(ctx, c.now()); err != nil {
		c.logger.Warn("scheduled cache rebuild failed", "error", err)
	}
	c.evictExpired()
}
