package oracle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citadel/internal/domain/pricing"
	"citadel/pkg/errors"
)

func TestFeedRegistry_ConfigureVersioning(t *testing.T) {
	r := NewFeedRegistry()
	cfg := *feedConfig()

	// First configure ignores the passed version and starts at 1
	require.NoError(t, r.Configure(cfg, 0))

	got, version, err := r.Config("WETH")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	assert.Equal(t, cfg.MaxStaleness, got.MaxStaleness)

	// Update with the read version succeeds and bumps it
	cfg.MaxStaleness = 2 * time.Minute
	require.NoError(t, r.Configure(cfg, version))

	got, version, err = r.Config("WETH")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, 2*time.Minute, got.MaxStaleness)

	// Update with a stale version is rejected
	err = r.Configure(cfg, 1)
	assert.ErrorIs(t, err, errors.ErrStaleVersion)
}

func TestFeedRegistry_UnknownAsset(t *testing.T) {
	r := NewFeedRegistry()

	_, _, err := r.Config("WBTC")
	assert.ErrorIs(t, err, errors.ErrPriceFeedNotConfigured)

	err = r.Append("WBTC", pricing.PricePoint{Asset: "WBTC"})
	assert.ErrorIs(t, err, errors.ErrPriceFeedNotConfigured)

	assert.Nil(t, r.History("WBTC"))
}

func TestFeedRegistry_HistoryWindowEviction(t *testing.T) {
	r := NewFeedRegistry()
	require.NoError(t, r.Configure(*feedConfig(), 0))

	for i := 0; i < pricing.HistoryWindow+10; i++ {
		point := pricing.PricePoint{
			Asset: "WETH",
			Price: decimal.NewFromInt(int64(i)),
		}
		require.NoError(t, r.Append("WETH", point))
	}

	history := r.History("WETH")
	require.Len(t, history, pricing.HistoryWindow)
	assert.True(t, history[0].Price.Equal(decimal.NewFromInt(10)), "oldest points evicted first")
	assert.True(t, history[len(history)-1].Price.Equal(decimal.NewFromInt(int64(pricing.HistoryWindow+9))))
}

func TestFeedRegistry_HistoryReturnsCopy(t *testing.T) {
	r := NewFeedRegistry()
	require.NoError(t, r.Configure(*feedConfig(), 0))
	require.NoError(t, r.Append("WETH", pricing.PricePoint{Asset: "WETH", Price: decimal.NewFromInt(100)}))

	history := r.History("WETH")
	history[0].Price = decimal.NewFromInt(1)

	assert.True(t, r.History("WETH")[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestFeedRegistry_Assets(t *testing.T) {
	r := NewFeedRegistry()
	assert.Empty(t, r.Assets())

	cfg := *feedConfig()
	require.NoError(t, r.Configure(cfg, 0))
	cfg.Asset = "WBTC"
	require.NoError(t, r.Configure(cfg, 0))

	assert.ElementsMatch(t, []string{"WETH", "WBTC"}, r.Assets())
}
