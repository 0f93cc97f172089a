package oracle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"citadel/internal/domain/pricing"
)

func feedConfig() *pricing.PriceFeedConfig {
	return &pricing.PriceFeedConfig{
		Asset:                 "WETH",
		MaxStaleness:          time.Minute,
		ConfidenceThreshold:   decimal.NewFromInt(10),
		DeviationThresholdBps: decimal.NewFromInt(500),
	}
}

func rawQuote(price float64, confidence float64, age time.Duration, now time.Time) *pricing.RawPrice {
	return &pricing.RawPrice{
		Asset:      "WETH",
		Price:      decimal.NewFromFloat(price),
		Confidence: decimal.NewFromFloat(confidence),
		Timestamp:  now.Add(-age),
	}
}

func historyOf(prices ...float64) []pricing.PricePoint {
	points := make([]pricing.PricePoint, 0, len(prices))
	for _, p := range prices {
		points = append(points, pricing.PricePoint{
			Asset:      "WETH",
			Price:      decimal.NewFromFloat(p),
			Confidence: decimal.NewFromInt(50),
		})
	}
	return points
}

func TestValidator_Validate(t *testing.T) {
	now := time.Now().UTC()
	v := NewValidator(0)

	tests := []struct {
		name      string
		raw       *pricing.RawPrice
		history   []pricing.PricePoint
		cfg       *pricing.PriceFeedConfig
		wantScore int
		wantRisk  pricing.RiskLevel
		wantValid bool
	}{
		{
			name:      "fresh quote with no history scores full",
			raw:       rawQuote(100, 50, time.Second, now),
			cfg:       feedConfig(),
			wantScore: 100,
			wantRisk:  pricing.RiskLow,
			wantValid: true,
		},
		{
			name:      "stale quote loses thirty points",
			raw:       rawQuote(100, 50, 2*time.Minute, now),
			cfg:       feedConfig(),
			wantScore: 70,
			wantRisk:  pricing.RiskMedium,
			wantValid: true,
		},
		{
			name:      "aging quote loses ten points",
			raw:       rawQuote(100, 50, 45*time.Second, now),
			cfg:       feedConfig(),
			wantScore: 90,
			wantRisk:  pricing.RiskLow,
			wantValid: true,
		},
		{
			name:      "low confidence loses twenty five points",
			raw:       rawQuote(100, 5, time.Second, now),
			cfg:       feedConfig(),
			wantScore: 75,
			wantRisk:  pricing.RiskMedium,
			wantValid: true,
		},
		{
			name:      "confidence just above threshold loses five points",
			raw:       rawQuote(100, 12, time.Second, now),
			cfg:       feedConfig(),
			wantScore: 95,
			wantRisk:  pricing.RiskLow,
			wantValid: true,
		},
		{
			name:      "sixteen percent jump is high risk and unusable",
			raw:       rawQuote(116, 50, time.Second, now),
			history:   historyOf(100),
			cfg:       feedConfig(),
			wantScore: 80,
			wantRisk:  pricing.RiskHigh,
			wantValid: false,
		},
		{
			name:      "three percent move loses ten points",
			raw:       rawQuote(103, 50, time.Second, now),
			history:   historyOf(100),
			cfg:       feedConfig(),
			wantScore: 90,
			wantRisk:  pricing.RiskMedium,
			wantValid: true,
		},
		{
			name:    "two consecutive large moves flag a trend",
			raw:     rawQuote(50, 50, time.Second, now),
			history: historyOf(100, 80, 64),
			cfg: &pricing.PriceFeedConfig{
				Asset:                 "WETH",
				MaxStaleness:          time.Minute,
				ConfidenceThreshold:   decimal.NewFromInt(10),
				DeviationThresholdBps: decimal.NewFromInt(100000),
			},
			wantScore: 90,
			wantRisk:  pricing.RiskMedium,
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.raw, tt.history, tt.cfg, now)

			assert.Equal(t, tt.wantScore, got.ValidationScore)
			assert.Equal(t, tt.wantRisk, got.ManipulationRisk)
			assert.Equal(t, tt.wantValid, got.IsValid)
		})
	}
}

func TestValidator_ZeroConfidenceNeverValid(t *testing.T) {
	now := time.Now().UTC()
	v := NewValidator(0)

	got := v.Validate(rawQuote(100, 0, time.Second, now), nil, feedConfig(), now)

	assert.False(t, got.IsValid)
	assert.Equal(t, 75, got.ValidationScore, "low-confidence deduction still applies, invalidity comes from the gate")
}

func TestValidator_NonPositivePriceNeverValid(t *testing.T) {
	now := time.Now().UTC()
	v := NewValidator(0)

	raw := &pricing.RawPrice{
		Asset:      "WETH",
		Price:      decimal.Zero,
		Confidence: decimal.NewFromInt(50),
		Timestamp:  now,
	}

	got := v.Validate(raw, nil, feedConfig(), now)
	assert.False(t, got.IsValid)
}

func TestValidator_DeductionsCompound(t *testing.T) {
	now := time.Now().UTC()
	v := NewValidator(0)

	// Stale, low confidence, huge deviation and trend all at once
	raw := rawQuote(300, 5, 5*time.Minute, now)
	history := historyOf(100, 150, 225)

	got := v.Validate(raw, history, feedConfig(), now)

	assert.Equal(t, 10, got.ValidationScore)
	assert.False(t, got.IsValid)
	assert.Equal(t, pricing.RiskHigh, got.ManipulationRisk)
}

func TestDiscountedPrice_FloorsAtZero(t *testing.T) {
	vp := &pricing.ValidatedPrice{
		Price:      decimal.NewFromInt(3),
		Confidence: decimal.NewFromInt(5),
	}
	assert.True(t, vp.DiscountedPrice().IsZero())

	vp = &pricing.ValidatedPrice{
		Price:      decimal.NewFromInt(100),
		Confidence: decimal.NewFromInt(5),
	}
	assert.True(t, vp.DiscountedPrice().Equal(decimal.NewFromInt(95)))
}
