package workers

import (
	"context"
	"time"

	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/events"
	"citadel/internal/metrics"
	"citadel/internal/oracle"
	"citadel/internal/risk"
	"citadel/pkg/errors"
)

// RiskMonitorWorker rescans open positions, recomputes LTV against fresh
// validated prices and flips positions between active and liquidatable
type RiskMonitorWorker struct {
	*BaseWorker

	positions position.Repository
	pools     PoolConfigProvider
	engine    *risk.Engine
	oracle    *oracle.Service
	cache     pricing.Cache
	publisher *events.Publisher
}

// PoolConfigProvider resolves the liquidation config of a position's pool
type PoolConfigProvider interface {
	ConfigFor(ctx context.Context, pos *position.Position) (*position.PoolLiquidationConfig, error)
}

// NewRiskMonitorWorker creates a risk monitor worker
func NewRiskMonitorWorker(
	interval time.Duration,
	positions position.Repository,
	pools PoolConfigProvider,
	engine *risk.Engine,
	oracleSvc *oracle.Service,
	cache pricing.Cache,
	publisher *events.Publisher,
) *RiskMonitorWorker {
	return &RiskMonitorWorker{
		BaseWorker: NewBaseWorker("risk_monitor", interval, true),
		positions:  positions,
		pools:      pools,
		engine:     engine,
		oracle:     oracleSvc,
		cache:      cache,
		publisher:  publisher,
	}
}

// Run scans active and liquidatable positions once
func (w *RiskMonitorWorker) Run(ctx context.Context) error {
	start := time.Now()

	scanned := 0
	flipped := 0
	counts := map[position.Status]int{}

	for _, status := range []position.Status{position.StatusActive, position.StatusLiquidatable} {
		list, err := w.positions.ListByStatus(ctx, status)
		if err != nil {
			w.RecordError(err, time.Since(start))
			return errors.Wrapf(err, "list %s positions", status)
		}

		for _, pos := range list {
			scanned++
			changed, err := w.evaluate(ctx, pos)
			if err != nil {
				w.Log().Warn("Position evaluation failed",
					"position_id", pos.ID,
					"error", err,
				)
				counts[pos.Status]++
				continue
			}
			if changed {
				flipped++
			}
			counts[pos.Status]++
		}
	}

	for status, n := range counts {
		metrics.PositionsByStatus.WithLabelValues(status.String()).Set(float64(n))
	}

	w.RecordRun(time.Since(start))
	w.Log().Debug("Risk scan completed",
		"scanned", scanned,
		"flipped", flipped,
		"duration", time.Since(start),
	)
	return nil
}

// evaluate recomputes one position's risk band and persists a status flip
func (w *RiskMonitorWorker) evaluate(ctx context.Context, pos *position.Position) (bool, error) {
	cfg, err := w.pools.ConfigFor(ctx, pos)
	if err != nil {
		return false, errors.Wrap(err, "resolve pool config")
	}

	collateralPrice, err := w.price(ctx, pos.CollateralAsset)
	if err != nil {
		return false, errors.Wrap(err, "collateral price")
	}
	debtPrice, err := w.price(ctx, pos.DebtAsset)
	if err != nil {
		return false, errors.Wrap(err, "debt price")
	}

	snap, err := w.engine.Snapshot(ctx, pos, collateralPrice, debtPrice)
	if err != nil {
		return false, err
	}

	metrics.PositionLTV.WithLabelValues(pos.ID.String()).Set(snap.LTVBps.InexactFloat64())

	band := w.engine.Classify(snap.LTVBps, cfg)
	target := pos.Status
	switch {
	case pos.Status == position.StatusActive && band == risk.BandLiquidatable:
		target = position.StatusLiquidatable
	case pos.Status == position.StatusLiquidatable && band != risk.BandLiquidatable:
		target = position.StatusActive
	}

	if target == pos.Status {
		return false, nil
	}

	from := pos.Status
	if !pos.Status.CanTransition(target) {
		return false, errors.Wrapf(errors.ErrInvalidInput,
			"illegal transition %s -> %s", pos.Status, target)
	}
	pos.Status = target

	if err := w.positions.Save(ctx, pos); err != nil {
		pos.Status = from
		return false, errors.Wrap(err, "save position status")
	}

	w.Log().Info("Position risk status changed",
		"position_id", pos.ID,
		"from", from,
		"to", target,
		"ltv_bps", snap.LTVBps.StringFixed(0),
	)

	if w.publisher != nil {
		if err := w.publisher.PublishPositionTransition(ctx, pos, from, snap.LTVBps); err != nil {
			w.Log().Warnf("Transition event publish failed for %s: %v", pos.ID, err)
		}
	}

	return true, nil
}

// price serves from the cache first and falls back to a full oracle read
func (w *RiskMonitorWorker) price(ctx context.Context, asset string) (*pricing.ValidatedPrice, error) {
	if w.cache != nil {
		if vp, err := w.cache.GetLatest(ctx, asset); err == nil {
			return vp, nil
		}
	}

	vp, _, err := w.oracle.ValidatePrice(ctx, asset)
	return vp, err
}
