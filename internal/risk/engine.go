package risk

import (
	"context"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/domain/vault"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

var (
	bpsFactor = decimal.NewFromInt(10000)

	// Exchange-rate sanity bounds around par, and the round-trip tolerance
	rateLowerBound     = decimal.NewFromFloat(0.1)
	rateUpperBound     = decimal.NewFromInt(10)
	roundTripTolerance = decimal.NewFromFloat(0.01)
)

// Band classifies a position's LTV against the pool thresholds
type Band string

const (
	BandActive       Band = "active"
	BandWarning      Band = "warning"
	BandLiquidatable Band = "liquidatable"
)

// String returns string representation
func (b Band) String() string {
	return string(b)
}

// Snapshot is a consistent valuation of one position from validated prices
type Snapshot struct {
	CollateralShares decimal.Decimal
	CollateralAssets decimal.Decimal
	CollateralValue  decimal.Decimal
	DebtValue        decimal.Decimal
	LTVBps           decimal.Decimal
}

// Engine converts collateral shares to valued assets and computes LTV
type Engine struct {
	vlt vault.Vault
	log *logger.Logger
}

// NewEngine creates a position risk engine
func NewEngine(vlt vault.Vault, log *logger.Logger) *Engine {
	return &Engine{
		vlt: vlt,
		log: log.With("component", "risk_engine"),
	}
}

// ConvertCollateral values shares in the underlying asset through a
// rate-bounded conversion cross-checked against the inverse conversion.
// This is the defense against vault share-price manipulation.
func (e *Engine) ConvertCollateral(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	if shares.IsZero() {
		return decimal.Zero, nil
	}
	if shares.IsNegative() {
		return decimal.Zero, errors.ErrArithmeticUnderflow
	}

	assets, err := e.vlt.ConvertToAssets(ctx, shares)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "convert to assets")
	}

	rate := assets.Div(shares)
	if rate.LessThan(rateLowerBound) || rate.GreaterThan(rateUpperBound) {
		return decimal.Zero, errors.Wrapf(errors.ErrExchangeRateOutOfBounds,
			"rate %s outside [%s, %s]", rate, rateLowerBound, rateUpperBound)
	}

	back, err := e.vlt.ConvertToShares(ctx, assets)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "convert to shares")
	}

	drift := back.Sub(shares).Abs().Div(shares)
	if drift.GreaterThan(roundTripTolerance) {
		return decimal.Zero, errors.Wrapf(errors.ErrExchangeRateOutOfBounds,
			"round-trip drift %s exceeds tolerance", drift)
	}

	return assets, nil
}

// Snapshot values a position from validated prices. Both prices must have
// passed validation; valuation uses the conservative discounted price.
func (e *Engine) Snapshot(
	ctx context.Context,
	pos *position.Position,
	collateralPrice, debtPrice *pricing.ValidatedPrice,
) (*Snapshot, error) {
	if err := usablePrice(collateralPrice); err != nil {
		return nil, err
	}
	if err := usablePrice(debtPrice); err != nil {
		return nil, err
	}

	assets, err := e.ConvertCollateral(ctx, pos.CollateralShares)
	if err != nil {
		return nil, err
	}

	debtValue := pos.TotalDebt().Mul(debtPrice.DiscountedPrice())
	collateralValue := assets.Mul(collateralPrice.DiscountedPrice())

	// Division by zero is a hard failure, never a silent zero
	if collateralValue.IsZero() {
		return nil, errors.Wrap(errors.ErrDivisionByZero, "collateral value is zero")
	}

	return &Snapshot{
		CollateralShares: pos.CollateralShares,
		CollateralAssets: assets,
		CollateralValue:  collateralValue,
		DebtValue:        debtValue,
		LTVBps:           debtValue.Mul(bpsFactor).Div(collateralValue),
	}, nil
}

// ComputeLTV returns the canonical validated-price LTV in basis points
func (e *Engine) ComputeLTV(
	ctx context.Context,
	pos *position.Position,
	collateralPrice, debtPrice *pricing.ValidatedPrice,
) (decimal.Decimal, error) {
	snap, err := e.Snapshot(ctx, pos, collateralPrice, debtPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.LTVBps, nil
}

// Classify maps an LTV to its band against the pool thresholds
func (e *Engine) Classify(ltvBps decimal.Decimal, cfg *position.PoolLiquidationConfig) Band {
	switch {
	case ltvBps.GreaterThanOrEqual(cfg.LiquidationLTVBps):
		return BandLiquidatable
	case ltvBps.GreaterThanOrEqual(cfg.WarningLTVBps):
		return BandWarning
	default:
		return BandActive
	}
}

// IsLiquidatable reports whether the position's validated LTV has crossed
// the liquidation threshold
func (e *Engine) IsLiquidatable(
	ctx context.Context,
	pos *position.Position,
	cfg *position.PoolLiquidationConfig,
	collateralPrice, debtPrice *pricing.ValidatedPrice,
) (bool, error) {
	ltv, err := e.ComputeLTV(ctx, pos, collateralPrice, debtPrice)
	if err != nil {
		return false, err
	}
	return e.Classify(ltv, cfg) == BandLiquidatable, nil
}

// EstimateLTV computes a display-only LTV from raw unvalidated quotes.
// It must never feed a solvency decision; liquidation paths go through
// Snapshot exclusively.
func (e *Engine) EstimateLTV(
	ctx context.Context,
	pos *position.Position,
	collateralQuote, debtQuote *pricing.RawPrice,
) (decimal.Decimal, error) {
	assets, err := e.vlt.ConvertToAssets(ctx, pos.CollateralShares)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "convert to assets")
	}

	collateralValue := assets.Mul(collateralQuote.Price)
	if collateralValue.IsZero() {
		return decimal.Zero, errors.Wrap(errors.ErrDivisionByZero, "collateral value is zero")
	}
	return pos.TotalDebt().Mul(debtQuote.Price).Mul(bpsFactor).Div(collateralValue), nil
}

// usablePrice enforces the invariant that LTV is computed only from
// validated, non-zero prices
func usablePrice(vp *pricing.ValidatedPrice) error {
	if vp == nil {
		return errors.Wrap(errors.ErrPriceInvalid, "missing price")
	}
	if !vp.IsValid {
		return errors.Wrapf(errors.ErrPriceInvalid,
			"asset %s score %d risk %s", vp.Asset, vp.ValidationScore, vp.ManipulationRisk)
	}
	if !vp.Price.IsPositive() {
		return errors.Wrapf(errors.ErrPriceInvalid, "asset %s non-positive price", vp.Asset)
	}
	return nil
}
