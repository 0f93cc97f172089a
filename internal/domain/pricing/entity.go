package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryWindow caps the per-asset price history; the oldest point is
// evicted once the window is full.
const HistoryWindow = 100

// RawPrice is an unvalidated quote as delivered by the upstream feed
type RawPrice struct {
	Asset      string
	Price      decimal.Decimal
	Confidence decimal.Decimal
	Timestamp  time.Time
	Valid      bool
}

// PricePoint is one entry of the append-only per-asset price history
type PricePoint struct {
	Asset           string          `ch:"asset"`
	Price           decimal.Decimal `ch:"price"`
	Confidence      decimal.Decimal `ch:"confidence"`
	Timestamp       time.Time       `ch:"timestamp"`
	ValidationScore int             `ch:"validation_score"`
}

// PriceFeedConfig holds per-asset validation thresholds
type PriceFeedConfig struct {
	Asset                      string
	MaxStaleness               time.Duration
	ConfidenceThreshold        decimal.Decimal
	DeviationThresholdBps      decimal.Decimal
	CircuitBreakerEnabled      bool
	CircuitBreakerThresholdBps decimal.Decimal
}

// ValidatedPrice is the output of the price validator
type ValidatedPrice struct {
	Asset            string
	Price            decimal.Decimal
	Confidence       decimal.Decimal
	Timestamp        time.Time
	IsValid          bool
	ValidationScore  int // 0-100
	ManipulationRisk RiskLevel
	Source           PriceSource
}

// DiscountedPrice returns the conservative valuation price: the quoted
// price minus its confidence interval, floored at zero. This is the worst
// case for the protocol, never for the borrower.
func (v *ValidatedPrice) DiscountedPrice() decimal.Decimal {
	p := v.Price.Sub(v.Confidence)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// RiskLevel classifies the likelihood of adversarial price movement
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String returns string representation
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	}
	return "unknown"
}

// Valid checks if risk level is valid
func (r RiskLevel) Valid() bool {
	return r >= RiskLow && r <= RiskHigh
}

// Bump raises the risk level by one step, capped at high
func (r RiskLevel) Bump() RiskLevel {
	if r >= RiskHigh {
		return RiskHigh
	}
	return r + 1
}

// AtLeast returns the greater of the two levels
func (r RiskLevel) AtLeast(other RiskLevel) RiskLevel {
	if other > r {
		return other
	}
	return r
}

// PriceSource identifies which feed produced a validated price
type PriceSource string

const (
	SourcePrimary  PriceSource = "primary"
	SourceFallback PriceSource = "fallback"
)

// String returns string representation
func (s PriceSource) String() string {
	return string(s)
}

// ManipulationPattern identifies a detected manipulation shape
type ManipulationPattern string

const (
	PatternNone            ManipulationPattern = "none"
	PatternPumpDump        ManipulationPattern = "pump_dump"
	PatternFlashCrash      ManipulationPattern = "flash_crash"
	PatternGradualDrift    ManipulationPattern = "gradual_drift"
	PatternVolatilitySpike ManipulationPattern = "volatility_spike"
	PatternMultiple        ManipulationPattern = "multiple_patterns"
)

// String returns string representation
func (p ManipulationPattern) String() string {
	return string(p)
}

// RecommendedAction tells the caller what to do about a detection
type RecommendedAction string

const (
	ActionNone                RecommendedAction = "none"
	ActionIncreaseMonitoring  RecommendedAction = "increase_monitoring"
	ActionRejectQuote         RecommendedAction = "reject_quote"
	ActionSuspendAsset        RecommendedAction = "suspend_asset"
	ActionRequireManualReview RecommendedAction = "require_manual_review"
	ActionHaltOperations      RecommendedAction = "halt_operations"
)

// DetectorFinding is the verdict of a single pattern detector
type DetectorFinding struct {
	Pattern ManipulationPattern
	Fired   bool
	Risk    RiskLevel
	Score   int
	Action  RecommendedAction
}

// ManipulationResult is the combined verdict across all detectors
type ManipulationResult struct {
	Asset           string
	IsManipulation  bool
	Risk            RiskLevel
	ConfidenceScore int // 0-100, sum of fired detector scores
	Pattern         ManipulationPattern
	Action          RecommendedAction
	Findings        []DetectorFinding
	DetectedAt      time.Time
}

// FiredCount returns how many detectors fired
func (m *ManipulationResult) FiredCount() int {
	n := 0
	for _, f := range m.Findings {
		if f.Fired {
			n++
		}
	}
	return n
}
