package bootstrap

import (
	"context"
	"time"

	"citadel/pkg/logger"
)

const shutdownTimeout = 60 * time.Second

// Shutdown performs coordinated cleanup in dependency order:
// workers first, then the producer, flush tracking, stores last.
func (c *Container) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log := c.Log

	log.Info("[1/5] Stopping background workers...")
	if c.Scheduler.IsRunning() {
		if err := c.Scheduler.Stop(); err != nil {
			log.Error("Workers shutdown failed", "error", err)
		}
	}

	log.Info("[2/5] Closing Kafka producer...")
	if err := c.Producer.Close(); err != nil {
		log.Error("Kafka producer close failed", "error", err)
	}

	log.Info("[3/5] Flushing error tracker...")
	if err := c.ErrorTracker.Flush(ctx); err != nil {
		log.Error("Error tracker flush failed", "error", err)
	}

	log.Info("[4/5] Closing data stores...")
	if err := c.Redis.Close(); err != nil {
		log.Error("Redis close failed", "error", err)
	}
	if err := c.CH.Close(); err != nil {
		log.Error("ClickHouse close failed", "error", err)
	}
	if err := c.PG.Close(); err != nil {
		log.Error("Postgres close failed", "error", err)
	}

	log.Info("[5/5] Flushing logs...")
	logger.Sync()

	c.Cancel()
}
