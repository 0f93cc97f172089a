package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/pricing"
)

// Score deductions applied by the validator. The score starts at 100 and
// saturates at 0.
const (
	deductStale        = 30
	deductAging        = 10
	deductLowConf      = 25
	deductNearLowConf  = 5
	deductBigDeviation = 20
	deductDeviation    = 10
	deductTrendPerLvl  = 5

	// DefaultMinValidScore is the score floor below which a quote is unusable
	DefaultMinValidScore = 70
)

var (
	confidenceNearMargin = decimal.NewFromInt(5)
	trendDeltaThreshold  = decimal.NewFromFloat(0.10)
	bpsFactor            = decimal.NewFromInt(10000)
)

// Validator scores raw quotes for staleness, confidence and deviation
type Validator struct {
	minValidScore int
}

// NewValidator creates a price validator
func NewValidator(minValidScore int) *Validator {
	if minValidScore <= 0 {
		minValidScore = DefaultMinValidScore
	}
	return &Validator{minValidScore: minValidScore}
}

// Validate scores a raw quote against the per-asset config and the bounded
// price history. History is ordered oldest first.
func (v *Validator) Validate(
	raw *pricing.RawPrice,
	history []pricing.PricePoint,
	cfg *pricing.PriceFeedConfig,
	now time.Time,
) *pricing.ValidatedPrice {
	score := 100
	risk := pricing.RiskLow

	// Staleness
	age := now.Sub(raw.Timestamp)
	if age > cfg.MaxStaleness {
		score = deduct(score, deductStale)
		risk = risk.AtLeast(pricing.RiskMedium)
	} else if age > cfg.MaxStaleness/2 {
		score = deduct(score, deductAging)
	}

	// Confidence
	if raw.Confidence.LessThan(cfg.ConfidenceThreshold) {
		score = deduct(score, deductLowConf)
		risk = risk.AtLeast(pricing.RiskMedium)
	} else if raw.Confidence.LessThan(cfg.ConfidenceThreshold.Add(confidenceNearMargin)) {
		score = deduct(score, deductNearLowConf)
	}

	// Deviation against the most recent history point
	if len(history) > 0 {
		last := history[len(history)-1]
		devBps := deviationBps(last.Price, raw.Price)
		switch {
		case devBps.GreaterThan(cfg.DeviationThresholdBps):
			score = deduct(score, deductBigDeviation)
			risk = pricing.RiskHigh
		case devBps.GreaterThan(cfg.DeviationThresholdBps.Div(decimal.NewFromInt(2))):
			score = deduct(score, deductDeviation)
			risk = risk.AtLeast(pricing.RiskMedium)
		}
	}

	// Trend: two consecutive >10% moves ending at the current quote
	if len(history) >= 3 {
		n := len(history)
		d1 := relativeChange(history[n-2].Price, history[n-1].Price)
		d2 := relativeChange(history[n-1].Price, raw.Price)
		if d1.Abs().GreaterThan(trendDeltaThreshold) && d2.Abs().GreaterThan(trendDeltaThreshold) {
			risk = risk.AtLeast(pricing.RiskMedium)
			score = deduct(score, deductTrendPerLvl*(int(risk)+1))
		}
	}

	isValid := score >= v.minValidScore && risk < pricing.RiskHigh

	// A quote with zero confidence or a non-positive price is never usable,
	// whatever its score
	if raw.Confidence.IsZero() || !raw.Price.IsPositive() {
		isValid = false
	}

	return &pricing.ValidatedPrice{
		Asset:            raw.Asset,
		Price:            raw.Price,
		Confidence:       raw.Confidence,
		Timestamp:        raw.Timestamp,
		IsValid:          isValid,
		ValidationScore:  score,
		ManipulationRisk: risk,
		Source:           pricing.SourcePrimary,
	}
}

// MinValidScore returns the configured score floor
func (v *Validator) MinValidScore() int {
	return v.minValidScore
}

// deduct subtracts with saturation at zero
func deduct(score, amount int) int {
	if amount >= score {
		return 0
	}
	return score - amount
}

// relativeChange returns (to-from)/from, zero when from is zero
func relativeChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from)
}

// deviationBps returns the absolute basis-point change between two prices
func deviationBps(from, to decimal.Decimal) decimal.Decimal {
	return relativeChange(from, to).Abs().Mul(bpsFactor)
}
