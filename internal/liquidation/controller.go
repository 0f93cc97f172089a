package liquidation

import (
	"context"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

// Adaptive round budgets by how far LTV exceeds the liquidation threshold
var (
	adaptiveTier1ExcessBps = decimal.NewFromInt(200)
	adaptiveTier2ExcessBps = decimal.NewFromInt(500)
	adaptiveTier3ExcessBps = decimal.NewFromInt(1000)

	adaptiveTier2Efficiency = decimal.NewFromFloat(0.30)
	adaptiveTier3Efficiency = decimal.NewFromFloat(0.40)
	adaptiveTier4Efficiency = decimal.NewFromFloat(0.50)

	ratioScaleUp   = decimal.NewFromFloat(1.2)
	ratioScaleDown = decimal.NewFromFloat(0.8)

	nearSafetyMarginBps = decimal.NewFromInt(100)
)

// Controller orchestrates single, multi-round and adaptive liquidation
// strategies with explicit stopping conditions
type Controller struct {
	executor *Executor
	engine   *risk.Engine
	locks    *positionLocks
	log      *logger.Logger
}

// NewController creates a multi-round liquidation controller
func NewController(executor *Executor, engine *risk.Engine, log *logger.Logger) *Controller {
	return &Controller{
		executor: executor,
		engine:   engine,
		locks:    newPositionLocks(),
		log:      log.With("component", "liquidation_controller"),
	}
}

// RunSingleRound executes exactly one liquidation round under the
// position's writer lock
func (c *Controller) RunSingleRound(ctx context.Context, rc *RoundContext) (*position.LiquidationRoundResult, error) {
	unlock := c.locks.lock(rc.Position.ID)
	defer unlock()

	return c.executor.ExecuteRound(ctx, rc, 1)
}

// RunMultiRound executes up to maxRounds sequential rounds, stopping early
// when a stopping condition fires. Rounds never interleave on a position.
func (c *Controller) RunMultiRound(ctx context.Context, rc *RoundContext, maxRounds int) ([]*position.LiquidationRoundResult, error) {
	unlock := c.locks.lock(rc.Position.ID)
	defer unlock()

	if maxRounds <= 0 || maxRounds > rc.Policy.AbsoluteMaxRounds {
		maxRounds = rc.Policy.AbsoluteMaxRounds
	}

	return c.runRounds(ctx, rc, maxRounds, decimal.Zero)
}

// RunAdaptive selects the round budget and per-round aggressiveness from
// how far the position's LTV exceeds the liquidation threshold
func (c *Controller) RunAdaptive(ctx context.Context, rc *RoundContext) ([]*position.LiquidationRoundResult, error) {
	unlock := c.locks.lock(rc.Position.ID)
	defer unlock()

	snap, err := c.engine.Snapshot(ctx, rc.Position, rc.CollateralPrice, rc.DebtPrice)
	if err != nil {
		return nil, err
	}

	excess := snap.LTVBps.Sub(rc.Config.LiquidationLTVBps)
	if excess.IsNegative() {
		return nil, errors.Wrapf(errors.ErrPositionNotLiquidatable,
			"ltv %s below threshold", snap.LTVBps.StringFixed(0))
	}

	rounds, targetEfficiency := adaptiveBudget(excess)
	if rounds > rc.Policy.AbsoluteMaxRounds {
		rounds = rc.Policy.AbsoluteMaxRounds
	}

	c.log.Info("Adaptive liquidation planned",
		"position_id", rc.Position.ID,
		"excess_bps", excess.StringFixed(0),
		"round_budget", rounds,
		"target_efficiency", targetEfficiency,
	)

	return c.runRounds(ctx, rc, rounds, targetEfficiency)
}

// runRounds is the shared sequential loop. targetEfficiency of zero means
// no efficiency target (plain multi-round).
func (c *Controller) runRounds(
	ctx context.Context,
	rc *RoundContext,
	maxRounds int,
	targetEfficiency decimal.Decimal,
) ([]*position.LiquidationRoundResult, error) {
	pos := rc.Position
	originalCollateral := pos.CollateralShares
	cumulative := decimal.Zero

	var results []*position.LiquidationRoundResult

	for round := 1; round <= maxRounds; round++ {
		if c.ShouldStop(pos, rc.Config, originalCollateral, cumulative, round, rc.Policy) {
			break
		}

		roundCtx := *rc
		if !targetEfficiency.IsZero() {
			roundCtx.Config = c.scaledConfig(rc.Config, results, rc.Policy)
		}

		result, err := c.executor.ExecuteRound(ctx, &roundCtx, round)
		if err != nil {
			// A zero plan is a stopping condition, not a failure, once at
			// least one round ran
			if errors.Is(err, errors.ErrNoLiquidationNeeded) && len(results) > 0 {
				break
			}
			return results, err
		}

		results = append(results, result)
		cumulative = cumulative.Add(result.CollateralLiquidated)

		if result.FullyLiquidated {
			break
		}
		// Zero progress
		if result.CollateralLiquidated.IsZero() && result.DebtRepaid.IsZero() {
			break
		}
		// Position restored to safety
		if pos.Status != position.StatusLiquidatable {
			break
		}
		// Diminishing returns
		if round > 1 {
			improvement := result.LTVBeforeBps.Sub(result.LTVAfterBps)
			if improvement.LessThan(rc.Policy.MinLTVImprovementBps) {
				c.log.Info("Stopping liquidation on diminishing returns",
					"position_id", pos.ID,
					"round", round,
					"improvement_bps", improvement.StringFixed(1),
				)
				break
			}
		}
		// Efficiency cap
		if round > 2 && originalCollateral.IsPositive() {
			liquidatedRatio := cumulative.Div(originalCollateral)
			if liquidatedRatio.GreaterThan(rc.Policy.EfficiencyCapRatio) {
				c.log.Info("Stopping liquidation at efficiency cap",
					"position_id", pos.ID,
					"round", round,
					"liquidated_ratio", liquidatedRatio.StringFixed(3),
				)
				break
			}
			if !targetEfficiency.IsZero() && liquidatedRatio.GreaterThanOrEqual(targetEfficiency) {
				break
			}
		}
	}

	return results, nil
}

// ShouldStop is the composite liquidation guard
func (c *Controller) ShouldStop(
	pos *position.Position,
	cfg *position.PoolLiquidationConfig,
	originalCollateral, cumulative decimal.Decimal,
	round int,
	policy position.LiquidationPolicy,
) bool {
	if pos.Status != position.StatusLiquidatable {
		return true
	}
	if !pos.CollateralShares.IsPositive() {
		return true
	}
	if !pos.TotalDebt().IsPositive() {
		return true
	}
	if round > policy.AbsoluteMaxRounds {
		return true
	}
	if originalCollateral.IsPositive() &&
		cumulative.Div(originalCollateral).GreaterThanOrEqual(policy.CumulativeCapRatio) {
		return true
	}
	return false
}

// scaledConfig derives a per-round config copy with the effective ratio
// scaled up when progress is slow and down near safety. The base config is
// never mutated, so every round starts from the configured value.
func (c *Controller) scaledConfig(
	base *position.PoolLiquidationConfig,
	results []*position.LiquidationRoundResult,
	policy position.LiquidationPolicy,
) *position.PoolLiquidationConfig {
	cfg := *base

	if len(results) == 0 {
		return &cfg
	}

	last := results[len(results)-1]

	// Near safety: the previous round left LTV just above the threshold
	if last.LTVAfterBps.Sub(base.LiquidationLTVBps).LessThan(nearSafetyMarginBps) {
		cfg.MaxLiquidationRatioPerRound = base.MaxLiquidationRatioPerRound.Mul(ratioScaleDown)
		return &cfg
	}

	// Slow progress: improvement under twice the diminishing-returns floor
	improvement := last.LTVBeforeBps.Sub(last.LTVAfterBps)
	if improvement.LessThan(policy.MinLTVImprovementBps.Mul(decimal.NewFromInt(2))) {
		scaled := base.MaxLiquidationRatioPerRound.Mul(ratioScaleUp)
		if scaled.GreaterThan(decimal.NewFromInt(1)) {
			scaled = decimal.NewFromInt(1)
		}
		cfg.MaxLiquidationRatioPerRound = scaled
	}

	return &cfg
}

// adaptiveBudget maps threshold excess to a round budget and an efficiency
// target
func adaptiveBudget(excessBps decimal.Decimal) (int, decimal.Decimal) {
	switch {
	case excessBps.LessThanOrEqual(adaptiveTier1ExcessBps):
		return 1, decimal.Zero
	case excessBps.LessThanOrEqual(adaptiveTier2ExcessBps):
		return 3, adaptiveTier2Efficiency
	case excessBps.LessThanOrEqual(adaptiveTier3ExcessBps):
		return 5, adaptiveTier3Efficiency
	default:
		return 7, adaptiveTier4Efficiency
	}
}
