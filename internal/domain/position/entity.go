package position

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position represents debt issued against locked collateral shares
type Position struct {
	ID      uuid.UUID `db:"id"`
	OwnerID uuid.UUID `db:"owner_id"`
	PoolID  uuid.UUID `db:"pool_id"`

	CollateralAsset  string          `db:"collateral_asset"`
	DebtAsset        string          `db:"debt_asset"`
	CollateralShares decimal.Decimal `db:"collateral_shares"`

	Principal       decimal.Decimal `db:"principal"`
	AccruedInterest decimal.Decimal `db:"accrued_interest"`

	Status     Status     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	MaturityAt *time.Time `db:"maturity_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// TotalDebt returns principal plus accrued interest
func (p *Position) TotalDebt() decimal.Decimal {
	return p.Principal.Add(p.AccruedInterest)
}

// Repay applies a repayment to the position, interest before principal.
// It returns the interest and principal portions actually applied; any
// surplus beyond total debt is left unapplied.
func (p *Position) Repay(amount decimal.Decimal) (interest, principal decimal.Decimal) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, decimal.Zero
	}

	interest = decimal.Min(amount, p.AccruedInterest)
	p.AccruedInterest = p.AccruedInterest.Sub(interest)

	remaining := amount.Sub(interest)
	principal = decimal.Min(remaining, p.Principal)
	p.Principal = p.Principal.Sub(principal)

	return interest, principal
}

// Status defines the position lifecycle state
type Status string

const (
	StatusActive       Status = "active"
	StatusLiquidatable Status = "liquidatable"
	StatusLiquidated   Status = "liquidated"
	StatusClosed       Status = "closed"
)

// Valid checks if position status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusLiquidatable, StatusLiquidated, StatusClosed:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusLiquidated || s == StatusClosed
}

// CanTransition reports whether s -> to is a legal lifecycle move.
// Active -> Liquidatable -> {Active, Liquidated}; Closed is reached only
// from Active via full repayment, never via liquidation.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	switch s {
	case StatusActive:
		return to == StatusLiquidatable || to == StatusClosed
	case StatusLiquidatable:
		return to == StatusActive || to == StatusLiquidated
	}
	return false
}

// PoolLiquidationConfig holds the lending pool's liquidation parameters.
// Rates are fractions (0.05 = 5%); LTV thresholds are basis points.
type PoolLiquidationConfig struct {
	Enabled bool

	TickSizeBps decimal.Decimal

	// Penalty bounds
	MinPenaltyRate  decimal.Decimal
	MaxPenaltyRate  decimal.Decimal
	BasePenaltyRate decimal.Decimal

	LiquidationRewardRate       decimal.Decimal
	MaxLiquidationRatioPerRound decimal.Decimal
	SafetyBufferBps             decimal.Decimal

	// LTV thresholds in basis points
	InitialLTVBps     decimal.Decimal
	WarningLTVBps     decimal.Decimal
	LiquidationLTVBps decimal.Decimal

	// Penalty distribution rates; the remainder after the three configured
	// shares goes to the borrower-protection bucket when enabled
	LiquidatorPenaltyShare    decimal.Decimal
	PlatformPenaltyShare      decimal.Decimal
	InsurancePenaltyShare     decimal.Decimal
	BorrowerProtectionEnabled bool
}

// TickFor buckets an LTV (bps) into its tick index, grouping positions by
// liquidation urgency
func (c *PoolLiquidationConfig) TickFor(ltvBps decimal.Decimal) int64 {
	if c.TickSizeBps.IsZero() {
		return 0
	}
	return ltvBps.Div(c.TickSizeBps).Floor().IntPart()
}

// LiquidationPolicy exposes the multi-round controller's stopping
// heuristics as configuration rather than hard-coded protocol constants
type LiquidationPolicy struct {
	// AbsoluteMaxRounds is the hard cap on rounds per invocation
	AbsoluteMaxRounds int

	// MinLTVImprovementBps stops the loop when a round past the first
	// improves LTV by less than this
	MinLTVImprovementBps decimal.Decimal

	// EfficiencyCapRatio stops the loop once this fraction of the original
	// collateral has been liquidated after round two
	EfficiencyCapRatio decimal.Decimal

	// CumulativeCapRatio is the should-stop guard on total collateral
	// liquidated across the whole invocation
	CumulativeCapRatio decimal.Decimal
}

// DefaultLiquidationPolicy returns the standard policy values
func DefaultLiquidationPolicy() LiquidationPolicy {
	return LiquidationPolicy{
		AbsoluteMaxRounds:    10,
		MinLTVImprovementBps: decimal.NewFromInt(50),
		EfficiencyCapRatio:   decimal.NewFromFloat(0.5),
		CumulativeCapRatio:   decimal.NewFromFloat(0.8),
	}
}

// PenaltyDistribution splits a collected penalty into its four buckets.
// The four values always sum exactly to the collected penalty.
type PenaltyDistribution struct {
	LiquidatorShare         decimal.Decimal
	PlatformShare           decimal.Decimal
	InsuranceShare          decimal.Decimal
	BorrowerProtectionShare decimal.Decimal
}

// Total returns the sum of all four shares
func (d *PenaltyDistribution) Total() decimal.Decimal {
	return d.LiquidatorShare.
		Add(d.PlatformShare).
		Add(d.InsuranceShare).
		Add(d.BorrowerProtectionShare)
}

// LiquidationRoundResult records the outcome of one liquidation round
type LiquidationRoundResult struct {
	ID         uuid.UUID `db:"id"`
	PositionID uuid.UUID `db:"position_id"`
	Round      int       `db:"round"`

	CollateralLiquidated decimal.Decimal `db:"collateral_liquidated"` // shares
	DebtRepaid           decimal.Decimal `db:"debt_repaid"`
	PenaltyCollected     decimal.Decimal `db:"penalty_collected"`
	RewardPaid           decimal.Decimal `db:"reward_paid"`
	CollateralReturned   decimal.Decimal `db:"collateral_returned"`
	FullyLiquidated      bool            `db:"fully_liquidated"`

	LTVBeforeBps decimal.Decimal `db:"ltv_before_bps"`
	LTVAfterBps  decimal.Decimal `db:"ltv_after_bps"`

	Distribution PenaltyDistribution `db:"-"`
	ExecutedAt   time.Time           `db:"executed_at"`
}
