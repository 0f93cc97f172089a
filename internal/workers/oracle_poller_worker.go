package workers

import (
	"context"
	"time"

	"citadel/internal/oracle"
	"citadel/pkg/errors"
)

// OraclePollerWorker refreshes validated prices for every configured feed
// so that history, cache and breaker state stay warm between demand reads
type OraclePollerWorker struct {
	*BaseWorker

	oracle   *oracle.Service
	registry *oracle.FeedRegistry
}

// NewOraclePollerWorker creates an oracle poller worker
func NewOraclePollerWorker(interval time.Duration, svc *oracle.Service, registry *oracle.FeedRegistry) *OraclePollerWorker {
	return &OraclePollerWorker{
		BaseWorker: NewBaseWorker("oracle_poller", interval, true),
		oracle:     svc,
		registry:   registry,
	}
}

// Run polls every configured asset once
func (w *OraclePollerWorker) Run(ctx context.Context) error {
	start := time.Now()

	assets := w.registry.Assets()
	failed := 0

	for _, asset := range assets {
		if _, _, err := w.oracle.ValidatePrice(ctx, asset); err != nil {
			// Frozen assets and rejected quotes are expected here, the
			// poller only keeps the pipeline warm
			if errors.Is(err, errors.ErrCircuitBreakerTripped) ||
				errors.Is(err, errors.ErrEmergencyModeActive) ||
				errors.Is(err, errors.ErrPriceInvalid) {
				continue
			}
			failed++
			w.Log().Warn("Oracle poll failed",
				"asset", asset,
				"error", err,
			)
		}
	}

	w.RecordRun(time.Since(start))
	w.Log().Debug("Oracle poll completed",
		"assets", len(assets),
		"failed", failed,
	)
	return nil
}
