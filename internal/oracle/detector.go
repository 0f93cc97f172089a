package oracle

import (
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/pricing"
)

// Minimum history lengths per detector; with fewer points a detector
// reports no manipulation.
const (
	minPointsPumpDump   = 5
	minPointsFlashCrash = 3
	minPointsDrift      = 10
	minPointsVolSpike   = 5
)

// Per-detector confidence scores, summed and capped at 100 when combined
const (
	scorePumpDump   = 40
	scoreFlashCrash = 35
	scoreDrift      = 25
	scoreVolSpike   = 30
)

var (
	pumpDumpMoveThreshold = decimal.NewFromFloat(0.03)
	flashCrashThreshold   = decimal.NewFromFloat(0.15)
	flashCrashHigh        = decimal.NewFromFloat(0.20)
	driftThreshold        = decimal.NewFromFloat(0.05)
	driftHighThreshold    = decimal.NewFromFloat(0.10)
	confDropThreshold     = decimal.NewFromInt(10)
	volSpikeFactor        = decimal.NewFromInt(4)
	volSpikeHighFactor    = decimal.NewFromInt(6)
	flashCrashVolFactor   = decimal.NewFromInt(3)
	pumpDumpHighTholdMult = decimal.NewFromInt(3)
	pumpDumpMedTholdMult  = decimal.NewFromInt(2)
)

// Detector runs the four manipulation pattern detectors over the bounded
// price history plus the current quote
type Detector struct{}

// NewDetector creates a manipulation detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect evaluates the current quote against the asset's history and
// combines the individual detector verdicts
func (d *Detector) Detect(
	asset string,
	price, confidence decimal.Decimal,
	history []pricing.PricePoint,
	cfg *pricing.PriceFeedConfig,
	now time.Time,
) *pricing.ManipulationResult {
	prices := make([]decimal.Decimal, 0, len(history)+1)
	confs := make([]decimal.Decimal, 0, len(history)+1)
	for _, p := range history {
		prices = append(prices, p.Price)
		confs = append(confs, p.Confidence)
	}
	prices = append(prices, price)
	confs = append(confs, confidence)

	findings := []pricing.DetectorFinding{
		d.detectPumpDump(prices, cfg),
		d.detectFlashCrash(prices),
		d.detectGradualDrift(prices),
		d.detectVolatilitySpike(prices, confs),
	}

	result := &pricing.ManipulationResult{
		Asset:      asset,
		Pattern:    pricing.PatternNone,
		Action:     pricing.ActionNone,
		Findings:   findings,
		DetectedAt: now,
	}

	fired := 0
	var top pricing.DetectorFinding
	for _, f := range findings {
		if !f.Fired {
			continue
		}
		fired++
		result.IsManipulation = true
		result.ConfidenceScore += f.Score
		result.Risk = result.Risk.AtLeast(f.Risk)
		if f.Risk >= top.Risk || top.Pattern == "" {
			top = f
		}
	}

	if fired == 0 {
		return result
	}

	if result.ConfidenceScore > 100 {
		result.ConfidenceScore = 100
	}

	result.Pattern = top.Pattern
	result.Action = top.Action

	// Multiple concurrent patterns escalate the verdict
	if fired > 1 {
		result.Risk = result.Risk.Bump()
		result.Pattern = pricing.PatternMultiple
		result.Action = pricing.ActionHaltOperations
	}

	return result
}

// detectPumpDump counts >=3% same-direction moves over the last four deltas
func (d *Detector) detectPumpDump(prices []decimal.Decimal, cfg *pricing.PriceFeedConfig) pricing.DetectorFinding {
	finding := pricing.DetectorFinding{
		Pattern: pricing.PatternPumpDump,
		Action:  pricing.ActionSuspendAsset,
		Score:   scorePumpDump,
	}
	if len(prices) < minPointsPumpDump {
		return finding
	}

	deltas := lastDeltas(prices, 4)
	pumps, dumps := 0, 0
	maxDevBps := decimal.Zero
	for _, delta := range deltas {
		if delta.GreaterThan(pumpDumpMoveThreshold) {
			pumps++
		} else if delta.Neg().GreaterThan(pumpDumpMoveThreshold) {
			dumps++
		}
		devBps := delta.Abs().Mul(bpsFactor)
		if devBps.GreaterThan(maxDevBps) {
			maxDevBps = devBps
		}
	}

	if !((pumps >= 2 && dumps >= 1) || (dumps >= 2 && pumps >= 1)) {
		return finding
	}

	finding.Fired = true
	switch {
	case maxDevBps.GreaterThan(cfg.DeviationThresholdBps.Mul(pumpDumpHighTholdMult)):
		finding.Risk = pricing.RiskHigh
	case maxDevBps.GreaterThan(cfg.DeviationThresholdBps.Mul(pumpDumpMedTholdMult)):
		finding.Risk = pricing.RiskMedium
	default:
		finding.Risk = pricing.RiskLow
	}
	return finding
}

// detectFlashCrash fires on a single extreme move well above trailing volatility
func (d *Detector) detectFlashCrash(prices []decimal.Decimal) pricing.DetectorFinding {
	finding := pricing.DetectorFinding{
		Pattern: pricing.PatternFlashCrash,
		Action:  pricing.ActionRejectQuote,
		Score:   scoreFlashCrash,
	}
	if len(prices) < minPointsFlashCrash {
		return finding
	}

	n := len(prices)
	latest := relativeChange(prices[n-2], prices[n-1]).Abs()

	trailing := trailingAvgVolatility(prices[:n-1], 4)
	if latest.GreaterThan(flashCrashThreshold) &&
		(trailing.IsZero() || latest.GreaterThan(trailing.Mul(flashCrashVolFactor))) {
		finding.Fired = true
		if latest.GreaterThan(flashCrashHigh) {
			finding.Risk = pricing.RiskHigh
		} else {
			finding.Risk = pricing.RiskMedium
		}
	}
	return finding
}

// detectGradualDrift fires on a sustained directional move across ten points
func (d *Detector) detectGradualDrift(prices []decimal.Decimal) pricing.DetectorFinding {
	finding := pricing.DetectorFinding{
		Pattern: pricing.PatternGradualDrift,
		Action:  pricing.ActionIncreaseMonitoring,
		Score:   scoreDrift,
	}
	if len(prices) < minPointsDrift {
		return finding
	}

	window := prices[len(prices)-minPointsDrift:]
	drift := relativeChange(window[0], window[len(window)-1]).Abs()
	run := longestDirectionalRun(window)

	if drift.GreaterThan(driftThreshold) && run >= 3 {
		finding.Fired = true
		if drift.GreaterThan(driftHighThreshold) && run >= 5 {
			finding.Risk = pricing.RiskHigh
		} else {
			finding.Risk = pricing.RiskMedium
		}
	}
	return finding
}

// detectVolatilitySpike fires when the current move dwarfs trailing
// volatility while quote confidence is collapsing
func (d *Detector) detectVolatilitySpike(prices, confs []decimal.Decimal) pricing.DetectorFinding {
	finding := pricing.DetectorFinding{
		Pattern: pricing.PatternVolatilitySpike,
		Action:  pricing.ActionRequireManualReview,
		Score:   scoreVolSpike,
	}
	if len(prices) < minPointsVolSpike {
		return finding
	}

	n := len(prices)
	current := relativeChange(prices[n-2], prices[n-1]).Abs()
	trailing := trailingAvgVolatility(prices[:n-1], n-2)

	drops := confidenceDrops(confs)

	if trailing.IsPositive() && current.GreaterThan(trailing.Mul(volSpikeFactor)) && drops >= 2 {
		finding.Fired = true
		if current.GreaterThan(trailing.Mul(volSpikeHighFactor)) && drops >= 3 {
			finding.Risk = pricing.RiskHigh
		} else {
			finding.Risk = pricing.RiskMedium
		}
	}
	return finding
}

// lastDeltas returns up to n most recent relative price changes
func lastDeltas(prices []decimal.Decimal, n int) []decimal.Decimal {
	deltas := make([]decimal.Decimal, 0, n)
	for i := len(prices) - n; i < len(prices); i++ {
		if i < 1 {
			continue
		}
		deltas = append(deltas, relativeChange(prices[i-1], prices[i]))
	}
	return deltas
}

// trailingAvgVolatility averages the absolute changes over the last n deltas
func trailingAvgVolatility(prices []decimal.Decimal, n int) decimal.Decimal {
	deltas := lastDeltas(prices, n)
	if len(deltas) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, d := range deltas {
		sum = sum.Add(d.Abs())
	}
	return sum.Div(decimal.NewFromInt(int64(len(deltas))))
}

// longestDirectionalRun returns the longest streak of consecutive
// same-direction moves in the window
func longestDirectionalRun(prices []decimal.Decimal) int {
	best, run := 0, 0
	prevSign := 0
	for i := 1; i < len(prices); i++ {
		delta := prices[i].Cmp(prices[i-1])
		if delta != 0 && delta == prevSign {
			run++
		} else if delta != 0 {
			run = 1
		} else {
			run = 0
		}
		prevSign = delta
		if run > best {
			best = run
		}
	}
	return best
}

// confidenceDrops counts consecutive confidence decreases larger than 10 points
func confidenceDrops(confs []decimal.Decimal) int {
	drops := 0
	for i := 1; i < len(confs); i++ {
		if confs[i-1].Sub(confs[i]).GreaterThan(confDropThreshold) {
			drops++
		}
	}
	return drops
}
