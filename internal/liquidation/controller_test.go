package liquidation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citadel/internal/domain/position"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

func newController(f *fixture) *Controller {
	log := logger.Get()
	engine := risk.NewEngine(f.vault, log)
	return NewController(f.executor, engine, log)
}

func TestController_RunSingleRound(t *testing.T) {
	f := newFixture(t)
	c := newController(f)

	pos := liquidatablePosition(10, 850)
	rc := roundContext(pos)

	result, err := c.RunSingleRound(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Round)
	assert.Equal(t, position.StatusActive, pos.Status)
}

func TestController_RunMultiRound(t *testing.T) {
	ctx := context.Background()

	t.Run("stops when the position recovers", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		// One round brings LTV from 8500 to 7500
		pos := liquidatablePosition(10, 850)
		results, err := c.RunMultiRound(ctx, roundContext(pos), 5)
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, position.StatusActive, pos.Status)
	})

	t.Run("stops on full liquidation", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		pos := liquidatablePosition(10, 850)
		rc := roundContext(pos)
		rc.Config.MaxLiquidationRatioPerRound = decimal.NewFromInt(1)

		results, err := c.RunMultiRound(ctx, rc, 5)
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.True(t, results[0].FullyLiquidated)
		assert.Equal(t, position.StatusLiquidated, pos.Status)
	})

	t.Run("stops on diminishing returns when debt exceeds collateral", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		// 2000 debt against 1000 of collateral: every round worsens LTV, so
		// the loop stops after the second round fails to improve it
		pos := liquidatablePosition(10, 2000)
		results, err := c.RunMultiRound(ctx, roundContext(pos), 10)
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, position.StatusLiquidatable, pos.Status)
		assert.True(t, results[1].LTVAfterBps.GreaterThan(results[1].LTVBeforeBps))
	})

	t.Run("round budget clamps to the policy cap", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		pos := liquidatablePosition(10, 2000)
		rc := roundContext(pos)
		rc.Policy.AbsoluteMaxRounds = 1

		results, err := c.RunMultiRound(ctx, rc, 100)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestController_ShouldStop(t *testing.T) {
	f := newFixture(t)
	c := newController(f)

	policy := position.DefaultLiquidationPolicy()
	cfg := liquidationConfig()
	ten := decimal.NewFromInt(10)

	tests := []struct {
		name       string
		pos        *position.Position
		cumulative decimal.Decimal
		round      int
		want       bool
	}{
		{
			name:       "liquidatable position with headroom continues",
			pos:        liquidatablePosition(10, 850),
			cumulative: decimal.Zero,
			round:      1,
			want:       false,
		},
		{
			name: "non-liquidatable status stops",
			pos: func() *position.Position {
				p := liquidatablePosition(10, 850)
				p.Status = position.StatusActive
				return p
			}(),
			cumulative: decimal.Zero,
			round:      1,
			want:       true,
		},
		{
			name:       "no collateral left stops",
			pos:        liquidatablePosition(0, 850),
			cumulative: decimal.Zero,
			round:      1,
			want:       true,
		},
		{
			name:       "no debt left stops",
			pos:        liquidatablePosition(10, 0),
			cumulative: decimal.Zero,
			round:      1,
			want:       true,
		},
		{
			name:       "round past the absolute cap stops",
			pos:        liquidatablePosition(10, 850),
			cumulative: decimal.Zero,
			round:      policy.AbsoluteMaxRounds + 1,
			want:       true,
		},
		{
			name:       "cumulative cap reached stops",
			pos:        liquidatablePosition(10, 850),
			cumulative: decimal.NewFromInt(8),
			round:      3,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ShouldStop(tt.pos, cfg, ten, tt.cumulative, tt.round, policy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestController_RunAdaptive(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy position is rejected", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		// LTV 5000, threshold 8000
		pos := liquidatablePosition(10, 500)
		_, err := c.RunAdaptive(ctx, roundContext(pos))
		assert.ErrorIs(t, err, errors.ErrPositionNotLiquidatable)
	})

	t.Run("small excess gets a single round", func(t *testing.T) {
		f := newFixture(t)
		c := newController(f)

		// LTV 8100: 100bps over the threshold
		pos := liquidatablePosition(10, 810)
		results, err := c.RunAdaptive(ctx, roundContext(pos))
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, position.StatusActive, pos.Status)
	})
}

func TestAdaptiveBudget(t *testing.T) {
	tests := []struct {
		excess         int64
		wantRounds     int
		wantEfficiency decimal.Decimal
	}{
		{100, 1, decimal.Zero},
		{200, 1, decimal.Zero},
		{300, 3, decimal.NewFromFloat(0.30)},
		{700, 5, decimal.NewFromFloat(0.40)},
		{1500, 7, decimal.NewFromFloat(0.50)},
	}

	for _, tt := range tests {
		rounds, efficiency := adaptiveBudget(decimal.NewFromInt(tt.excess))
		assert.Equal(t, tt.wantRounds, rounds, "excess %d", tt.excess)
		assert.True(t, efficiency.Equal(tt.wantEfficiency), "excess %d", tt.excess)
	}
}

func TestScaledConfig(t *testing.T) {
	f := newFixture(t)
	c := newController(f)

	base := liquidationConfig()
	policy := position.DefaultLiquidationPolicy()

	t.Run("no prior rounds keeps the base ratio", func(t *testing.T) {
		got := c.scaledConfig(base, nil, policy)
		assert.True(t, got.MaxLiquidationRatioPerRound.Equal(base.MaxLiquidationRatioPerRound))
	})

	t.Run("near safety scales the ratio down", func(t *testing.T) {
		last := &position.LiquidationRoundResult{
			LTVBeforeBps: decimal.NewFromInt(8500),
			LTVAfterBps:  decimal.NewFromInt(8050),
		}
		got := c.scaledConfig(base, []*position.LiquidationRoundResult{last}, policy)
		assert.True(t, got.MaxLiquidationRatioPerRound.Equal(decimal.NewFromFloat(0.4)))
	})

	t.Run("slow progress scales the ratio up", func(t *testing.T) {
		last := &position.LiquidationRoundResult{
			LTVBeforeBps: decimal.NewFromInt(9000),
			LTVAfterBps:  decimal.NewFromInt(8950),
		}
		got := c.scaledConfig(base, []*position.LiquidationRoundResult{last}, policy)
		assert.True(t, got.MaxLiquidationRatioPerRound.Equal(decimal.NewFromFloat(0.6)))
	})

	t.Run("scaled ratio never exceeds one", func(t *testing.T) {
		wide := liquidationConfig()
		wide.MaxLiquidationRatioPerRound = decimal.NewFromFloat(0.9)

		last := &position.LiquidationRoundResult{
			LTVBeforeBps: decimal.NewFromInt(9000),
			LTVAfterBps:  decimal.NewFromInt(8950),
		}
		got := c.scaledConfig(wide, []*position.LiquidationRoundResult{last}, policy)
		assert.True(t, got.MaxLiquidationRatioPerRound.Equal(decimal.NewFromInt(1)))
	})
}
