package liquidation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/domain/vault"
	"citadel/internal/events"
	"citadel/internal/metrics"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

// Market-adjustment coefficients for the dynamic penalty rate: volatility
// raises the penalty, deep liquidity lowers it
var (
	volatilityWeight = decimal.NewFromFloat(0.5)
	liquidityWeight  = decimal.NewFromFloat(0.3)
	adjustmentFloor  = decimal.NewFromFloat(0.8)
	adjustmentCeil   = decimal.NewFromFloat(1.5)
)

// MarketConditions feed the dynamic penalty rate; both values are 0..1
type MarketConditions struct {
	Volatility decimal.Decimal
	Liquidity  decimal.Decimal
}

// RoundContext bundles everything one liquidation round operates on.
// Prices are validated before entry and held fixed for the invocation.
type RoundContext struct {
	Position *position.Position
	Holder   *vault.CollateralHolder
	Config   *position.PoolLiquidationConfig
	Policy   position.LiquidationPolicy

	CollateralPrice *pricing.ValidatedPrice
	DebtPrice       *pricing.ValidatedPrice
	Market          MarketConditions

	// AssetPenaltyMultiplier scales the base penalty per collateral asset;
	// zero means 1x
	AssetPenaltyMultiplier decimal.Decimal
}

// Recorder persists round outcomes and position state after a round.
// Persistence failures surface to the caller; the in-memory transition has
// already been applied atomically at that point.
type Recorder interface {
	SaveRound(ctx context.Context, result *position.LiquidationRoundResult) error
	SavePosition(ctx context.Context, pos *position.Position) error
}

// Executor performs one liquidation round: extract, price, penalize,
// distribute, repay, update
type Executor struct {
	engine    *risk.Engine
	planner   *Planner
	breaker   *risk.CircuitBreaker
	vlt       vault.Vault
	recorder  Recorder
	publisher *events.Publisher
	log       *logger.Logger
}

// NewExecutor creates a liquidation executor. The publisher is optional;
// a nil publisher skips event emission.
func NewExecutor(
	engine *risk.Engine,
	planner *Planner,
	breaker *risk.CircuitBreaker,
	vlt vault.Vault,
	recorder Recorder,
	publisher *events.Publisher,
	log *logger.Logger,
) *Executor {
	return &Executor{
		engine:    engine,
		planner:   planner,
		breaker:   breaker,
		vlt:       vlt,
		recorder:  recorder,
		publisher: publisher,
		log:       log.With("component", "liquidation_executor"),
	}
}

// ExecuteRound runs a single liquidation round. All validation and
// valuation happen before any mutation; a failure anywhere leaves the
// position, holder and vault untouched.
func (x *Executor) ExecuteRound(ctx context.Context, rc *RoundContext, round int) (*position.LiquidationRoundResult, error) {
	started := time.Now()
	pos, holder, cfg := rc.Position, rc.Holder, rc.Config

	// Gate checks first: breakers on both legs, pool flag, position state,
	// custody binding
	if err := x.breaker.Check(pos.CollateralAsset); err != nil {
		return nil, err
	}
	if err := x.breaker.Check(pos.DebtAsset); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, errors.ErrLiquidationNotEnabled
	}
	if pos.Status != position.StatusLiquidatable {
		return nil, errors.Wrapf(errors.ErrPositionNotLiquidatable, "position %s is %s", pos.ID, pos.Status)
	}
	if !holder.BelongsTo(pos.ID) {
		return nil, errors.Wrapf(errors.ErrCollateralHolderMismatch,
			"holder %s bound to %s", holder.ID, holder.PositionID)
	}
	if holder.State != vault.HolderLocked {
		return nil, errors.Wrapf(errors.ErrCollateralHolderMismatch,
			"holder %s is %s, expected %s", holder.ID, holder.State, vault.HolderLocked)
	}

	active, err := x.vlt.IsActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "vault status")
	}
	if !active {
		return nil, errors.ErrVaultInactive
	}

	// Valuation from validated prices only
	snap, err := x.engine.Snapshot(ctx, pos, rc.CollateralPrice, rc.DebtPrice)
	if err != nil {
		return nil, err
	}

	planned := x.planner.PlanAmount(pos, cfg, snap)
	amount := decimal.Min(planned, holder.Shares)
	amount = decimal.Min(amount, pos.CollateralShares)
	if !amount.IsPositive() {
		return nil, errors.ErrNoLiquidationNeeded
	}

	// Mutation phase begins: redeem shares through the vault
	assetsOut, err := x.vlt.Withdraw(ctx, amount)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInsufficientLiquidity, err.Error())
	}

	collateralPrice := rc.CollateralPrice.DiscountedPrice()
	debtPrice := rc.DebtPrice.DiscountedPrice()

	liquidatedValue := assetsOut.Mul(collateralPrice)
	penaltyRate := x.penaltyRate(cfg, rc.AssetPenaltyMultiplier, rc.Market)
	penaltyValue := liquidatedValue.Mul(penaltyRate)

	totalDebtValue := pos.TotalDebt().Mul(debtPrice)
	debtRepayValue := liquidatedValue.Sub(penaltyValue)
	if debtRepayValue.GreaterThan(totalDebtValue) {
		debtRepayValue = totalDebtValue
	}
	if debtRepayValue.IsNegative() {
		debtRepayValue = decimal.Zero
	}

	rewardValue := debtRepayValue.Mul(cfg.LiquidationRewardRate)
	dist := distributePenalty(penaltyValue, cfg)

	// The holder was gated as locked with sufficient shares above, so the
	// extraction cannot fail once the vault has surrendered assets
	extracted, err := holder.Extract(amount)
	if err != nil {
		return nil, err
	}

	// Repay debt in debt-asset units, interest before principal
	debtRepaidUnits := decimal.Zero
	if debtPrice.IsPositive() {
		debtRepaidUnits = debtRepayValue.Div(debtPrice)
	}
	repaidInterest, repaidPrincipal := pos.Repay(debtRepaidUnits)

	pos.CollateralShares = pos.CollateralShares.Sub(extracted)
	pos.UpdatedAt = time.Now().UTC()

	// Unconsumed proceeds go back to the position owner
	leftoverValue := liquidatedValue.Sub(penaltyValue).Sub(debtRepayValue)
	collateralReturned := decimal.Zero
	if leftoverValue.IsPositive() && collateralPrice.IsPositive() {
		collateralReturned = leftoverValue.Div(collateralPrice)
	}

	result := &position.LiquidationRoundResult{
		ID:                   uuid.New(),
		PositionID:           pos.ID,
		Round:                round,
		CollateralLiquidated: extracted,
		DebtRepaid:           debtRepaidUnits,
		PenaltyCollected:     penaltyValue,
		RewardPaid:           rewardValue,
		CollateralReturned:   collateralReturned,
		LTVBeforeBps:         snap.LTVBps,
		Distribution:         dist,
		ExecutedAt:           time.Now().UTC(),
	}

	x.transition(pos, cfg, snap, assetsOut, collateralPrice, debtPrice, result)

	if x.recorder != nil {
		if err := x.recorder.SavePosition(ctx, pos); err != nil {
			return nil, errors.Wrap(err, "save position")
		}
		if err := x.recorder.SaveRound(ctx, result); err != nil {
			return nil, errors.Wrap(err, "save round")
		}
	}

	if x.publisher != nil {
		if err := x.publisher.PublishLiquidationRound(ctx, result); err != nil {
			x.log.Warnf("Failed to publish round events for %s: %v", pos.ID, err)
		}
	}

	x.observe(pos, result, started)

	x.log.Info("Liquidation round executed",
		"position_id", pos.ID,
		"round", round,
		"collateral_liquidated", extracted,
		"debt_repaid", debtRepaidUnits,
		"interest_repaid", repaidInterest,
		"principal_repaid", repaidPrincipal,
		"penalty", penaltyValue,
		"reward", rewardValue,
		"ltv_before", result.LTVBeforeBps.StringFixed(0),
		"ltv_after", result.LTVAfterBps.StringFixed(0),
		"status", pos.Status,
	)

	return result, nil
}

// penaltyRate computes base x asset multiplier x market adjustment, clamped
// to the configured bounds
func (x *Executor) penaltyRate(cfg *position.PoolLiquidationConfig, assetMultiplier decimal.Decimal, mkt MarketConditions) decimal.Decimal {
	if assetMultiplier.IsZero() {
		assetMultiplier = decimal.NewFromInt(1)
	}

	adjustment := decimal.NewFromInt(1).
		Add(mkt.Volatility.Mul(volatilityWeight)).
		Sub(mkt.Liquidity.Mul(liquidityWeight))
	if adjustment.LessThan(adjustmentFloor) {
		adjustment = adjustmentFloor
	}
	if adjustment.GreaterThan(adjustmentCeil) {
		adjustment = adjustmentCeil
	}

	rate := cfg.BasePenaltyRate.Mul(assetMultiplier).Mul(adjustment)
	if rate.LessThan(cfg.MinPenaltyRate) {
		rate = cfg.MinPenaltyRate
	}
	if rate.GreaterThan(cfg.MaxPenaltyRate) {
		rate = cfg.MaxPenaltyRate
	}
	return rate
}

// distributePenalty splits the penalty into four buckets that always sum
// exactly to the collected penalty: the three configured shares plus the
// exact remainder. The remainder funds borrower protection when enabled,
// otherwise it backstops the insurance fund.
func distributePenalty(penalty decimal.Decimal, cfg *position.PoolLiquidationConfig) position.PenaltyDistribution {
	dist := position.PenaltyDistribution{
		LiquidatorShare: penalty.Mul(cfg.LiquidatorPenaltyShare),
		PlatformShare:   penalty.Mul(cfg.PlatformPenaltyShare),
		InsuranceShare:  penalty.Mul(cfg.InsurancePenaltyShare),
	}

	remainder := penalty.
		Sub(dist.LiquidatorShare).
		Sub(dist.PlatformShare).
		Sub(dist.InsuranceShare)

	if cfg.BorrowerProtectionEnabled {
		dist.BorrowerProtectionShare = remainder
	} else {
		dist.InsuranceShare = dist.InsuranceShare.Add(remainder)
	}
	return dist
}

// transition recomputes the position status from post-round values without
// further vault calls
func (x *Executor) transition(
	pos *position.Position,
	cfg *position.PoolLiquidationConfig,
	snap *risk.Snapshot,
	assetsOut, collateralPrice, debtPrice decimal.Decimal,
	result *position.LiquidationRoundResult,
) {
	if pos.CollateralShares.IsZero() || pos.TotalDebt().IsZero() {
		pos.Status = position.StatusLiquidated
		result.FullyLiquidated = true
		result.LTVAfterBps = decimal.Zero
		return
	}

	newCollateralValue := snap.CollateralValue.Sub(assetsOut.Mul(collateralPrice))
	newDebtValue := pos.TotalDebt().Mul(debtPrice)

	if !newCollateralValue.IsPositive() {
		pos.Status = position.StatusLiquidated
		result.FullyLiquidated = true
		result.LTVAfterBps = decimal.Zero
		return
	}

	ltv := newDebtValue.Mul(bpsFactor).Div(newCollateralValue)
	result.LTVAfterBps = ltv

	if ltv.LessThan(cfg.LiquidationLTVBps) {
		pos.Status = position.StatusActive
	}
	// else: remains liquidatable for the next round
}

func (x *Executor) observe(pos *position.Position, result *position.LiquidationRoundResult, started time.Time) {
	outcome := "partial"
	if result.FullyLiquidated {
		outcome = "full"
	} else if pos.Status == position.StatusActive {
		outcome = "recovered"
	}

	metrics.LiquidationRounds.WithLabelValues(pos.CollateralAsset, outcome).Inc()
	metrics.CollateralLiquidated.WithLabelValues(pos.CollateralAsset).
		Add(toFloat(result.CollateralLiquidated))
	metrics.PenaltyCollected.WithLabelValues(pos.CollateralAsset).
		Add(toFloat(result.PenaltyCollected))
	metrics.LiquidationRoundDuration.WithLabelValues(pos.CollateralAsset).
		Observe(time.Since(started).Seconds())
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
