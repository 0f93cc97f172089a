package workers

import (
	"context"
	"time"

	"citadel/internal/domain/pricing"
	"citadel/internal/risk"
)

// BreakerRecoveryWorker attempts automatic recovery of tripped asset
// breakers once their recovery window has elapsed and the latest quote
// looks healthy again
type BreakerRecoveryWorker struct {
	*BaseWorker

	breaker *risk.CircuitBreaker
	cache   pricing.Cache
}

// NewBreakerRecoveryWorker creates a breaker recovery worker
func NewBreakerRecoveryWorker(interval time.Duration, breaker *risk.CircuitBreaker, cache pricing.Cache) *BreakerRecoveryWorker {
	return &BreakerRecoveryWorker{
		BaseWorker: NewBaseWorker("breaker_recovery", interval, true),
		breaker:    breaker,
		cache:      cache,
	}
}

// Run tries one recovery pass over all tripped assets
func (w *BreakerRecoveryWorker) Run(ctx context.Context) error {
	start := time.Now()

	if w.breaker.EmergencyActive() {
		// Emergency mode only clears by operator action
		w.RecordRun(time.Since(start))
		return nil
	}

	for _, asset := range w.breaker.TrippedAssets() {
		latest, err := w.cache.GetLatest(ctx, asset)
		if err != nil {
			continue
		}

		recovered, err := w.breaker.TryAutoRecover(ctx, asset, latest)
		if err != nil {
			w.Log().Warn("Auto-recovery attempt failed",
				"asset", asset,
				"error", err,
			)
			continue
		}
		if recovered {
			w.Log().Info("Asset breaker auto-recovered", "asset", asset)
		}
	}

	w.RecordRun(time.Since(start))
	return nil
}
