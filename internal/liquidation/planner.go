package liquidation

import (
	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/internal/risk"
	"citadel/pkg/logger"
)

var bpsFactor = decimal.NewFromInt(10000)

// Planner computes how much collateral a round must liquidate to bring a
// position back under the safety target
type Planner struct {
	log *logger.Logger
}

// NewPlanner creates a liquidation planner
func NewPlanner(log *logger.Logger) *Planner {
	return &Planner{log: log.With("component", "liquidation_planner")}
}

// TargetLTV returns warning LTV minus the safety buffer, falling back to
// the initial LTV when the subtraction would not leave a positive target
func (p *Planner) TargetLTV(cfg *position.PoolLiquidationConfig) decimal.Decimal {
	target := cfg.WarningLTVBps.Sub(cfg.SafetyBufferBps)
	if !target.IsPositive() {
		return cfg.InitialLTVBps
	}
	return target
}

// PlanAmount returns the collateral shares to liquidate this round,
// clamped to the per-round ratio cap. A zero return means no liquidation
// is needed. When the debt requires more collateral than the position
// holds, near-total liquidation is needed and the plan saturates at the
// per-round cap.
func (p *Planner) PlanAmount(
	pos *position.Position,
	cfg *position.PoolLiquidationConfig,
	snap *risk.Snapshot,
) decimal.Decimal {
	target := p.TargetLTV(cfg)
	required := snap.DebtValue.Mul(bpsFactor).Div(target)

	cap := pos.CollateralShares.Mul(cfg.MaxLiquidationRatioPerRound)

	if required.GreaterThanOrEqual(snap.CollateralValue) {
		return cap
	}

	excessValue := snap.CollateralValue.Sub(required)
	if !excessValue.IsPositive() {
		return decimal.Zero
	}

	// Value -> shares through the snapshot's own valuation, avoiding a
	// second vault round trip
	excessShares := snap.CollateralShares.Mul(excessValue).Div(snap.CollateralValue)
	return decimal.Min(excessShares, cap)
}

// PlanRatio returns the planned liquidation as a fraction of the position's
// collateral, saturating at the per-round cap when near-total liquidation
// is required
func (p *Planner) PlanRatio(
	cfg *position.PoolLiquidationConfig,
	snap *risk.Snapshot,
) decimal.Decimal {
	target := p.TargetLTV(cfg)
	required := snap.DebtValue.Mul(bpsFactor).Div(target)

	if required.GreaterThanOrEqual(snap.CollateralValue) {
		return cfg.MaxLiquidationRatioPerRound
	}

	ratio := snap.CollateralValue.Sub(required).Div(snap.CollateralValue)
	return decimal.Min(ratio, cfg.MaxLiquidationRatioPerRound)
}
