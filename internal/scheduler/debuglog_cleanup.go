package scheduler

import (
	"context"
	"time"

	"bikestreets_backend/platform/logger"
)

const defaultDebugLogCleanupInterval = time.Hour

// DebugLogCleanup periodically prunes the debug log in-process. It serves
// deployments without Redis.
type DebugLogCleanup struct {
	cleaner  Cleaner
	log      *logger.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewDebugLogCleanup(cleaner Cleaner, log *logger.Logger, interval, maxAge time.Duration) *DebugLogCleanup {
	if interval <= 0 {
		interval = defaultDebugLogCleanupInterval
	}

	return &DebugLogCleanup{
		cleaner:  cleaner,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

func (c *DebugLogCleanup) Run(ctx context.Context) {
	if c == nil || c.cleaner == nil {
		return
	}

	c.cleanup()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *DebugLogCleanup) cleanup() {
	if removed := c.cleaner.Cleanup(c.maxAge); removed > 0 {
		c.log.Info("debug log cleanup removed old entries", "removed", removed)
	}
}
