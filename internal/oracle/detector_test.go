package oracle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"citadel/internal/domain/pricing"
)

func pointsWithConfidence(prices, confs []float64) []pricing.PricePoint {
	points := make([]pricing.PricePoint, 0, len(prices))
	for i, p := range prices {
		points = append(points, pricing.PricePoint{
			Asset:      "WETH",
			Price:      decimal.NewFromFloat(p),
			Confidence: decimal.NewFromFloat(confs[i]),
		})
	}
	return points
}

func TestDetector_PumpDump(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	cfg := feedConfig()
	cfg.DeviationThresholdBps = decimal.NewFromInt(100)

	// Four alternating seven percent moves ending at the current quote
	history := historyOf(100, 107, 100, 107)
	res := d.Detect("WETH", decimal.NewFromInt(100), decimal.NewFromInt(50), history, cfg, now)

	assert.True(t, res.IsManipulation)
	assert.Equal(t, pricing.PatternPumpDump, res.Pattern)
	assert.Equal(t, pricing.RiskHigh, res.Risk)
	assert.Equal(t, pricing.ActionSuspendAsset, res.Action)
	assert.Equal(t, scorePumpDump, res.ConfidenceScore)
	assert.Equal(t, 1, res.FiredCount())
}

func TestDetector_FlashCrash(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	// Quiet tape, then a thirty percent drop in one quote
	history := historyOf(100, 100.1, 100, 100.2)
	res := d.Detect("WETH", decimal.NewFromInt(70), decimal.NewFromInt(50), history, feedConfig(), now)

	assert.True(t, res.IsManipulation)
	assert.Equal(t, pricing.PatternFlashCrash, res.Pattern)
	assert.Equal(t, pricing.RiskHigh, res.Risk)
	assert.Equal(t, pricing.ActionRejectQuote, res.Action)
	assert.Equal(t, scoreFlashCrash, res.ConfidenceScore)
}

func TestDetector_GradualDrift(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	// Nine history points plus the quote, each one percent above the last
	price := decimal.NewFromInt(100)
	step := decimal.NewFromFloat(1.01)
	history := make([]pricing.PricePoint, 0, 9)
	for i := 0; i < 9; i++ {
		history = append(history, pricing.PricePoint{
			Asset:      "WETH",
			Price:      price,
			Confidence: decimal.NewFromInt(50),
		})
		price = price.Mul(step)
	}

	res := d.Detect("WETH", price, decimal.NewFromInt(50), history, feedConfig(), now)

	assert.True(t, res.IsManipulation)
	assert.Equal(t, pricing.PatternGradualDrift, res.Pattern)
	assert.Equal(t, pricing.RiskMedium, res.Risk)
	assert.Equal(t, pricing.ActionIncreaseMonitoring, res.Action)
	assert.Equal(t, scoreDrift, res.ConfidenceScore)
}

func TestDetector_VolatilitySpike(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	// Half-percent tape, then a two and a half percent move while
	// confidence collapses on every quote
	history := pointsWithConfidence(
		[]float64{100, 100.5, 100, 100.5},
		[]float64{90, 75, 60, 45},
	)
	res := d.Detect("WETH", decimal.NewFromInt(103), decimal.NewFromInt(30), history, feedConfig(), now)

	assert.True(t, res.IsManipulation)
	assert.Equal(t, pricing.PatternVolatilitySpike, res.Pattern)
	assert.Equal(t, pricing.RiskMedium, res.Risk)
	assert.Equal(t, pricing.ActionRequireManualReview, res.Action)
	assert.Equal(t, scoreVolSpike, res.ConfidenceScore)
}

func TestDetector_MultiplePatternsEscalate(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	// Oscillations plus a terminal crash fire pump-dump and flash crash together
	history := historyOf(100, 107, 100, 107)
	res := d.Detect("WETH", decimal.NewFromInt(70), decimal.NewFromInt(50), history, feedConfig(), now)

	assert.True(t, res.IsManipulation)
	assert.Equal(t, 2, res.FiredCount())
	assert.Equal(t, pricing.PatternMultiple, res.Pattern)
	assert.Equal(t, pricing.RiskHigh, res.Risk)
	assert.Equal(t, pricing.ActionHaltOperations, res.Action)
	assert.Equal(t, scorePumpDump+scoreFlashCrash, res.ConfidenceScore)
}

func TestDetector_InsufficientHistory(t *testing.T) {
	d := NewDetector()
	now := time.Now().UTC()

	res := d.Detect("WETH", decimal.NewFromInt(70), decimal.NewFromInt(50), historyOf(100), feedConfig(), now)

	assert.False(t, res.IsManipulation)
	assert.Equal(t, pricing.PatternNone, res.Pattern)
	assert.Equal(t, pricing.ActionNone, res.Action)
	assert.Equal(t, pricing.RiskLow, res.Risk)
	assert.Zero(t, res.ConfidenceScore)
	assert.Zero(t, res.FiredCount())
}
