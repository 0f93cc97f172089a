package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citadel/internal/adapters/kafka"
	"citadel/internal/domain/pricing"
	"citadel/internal/events"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

func breakerFeedConfig() *pricing.PriceFeedConfig {
	return &pricing.PriceFeedConfig{
		Asset:                      "WETH",
		CircuitBreakerEnabled:      true,
		CircuitBreakerThresholdBps: decimal.NewFromInt(1000),
	}
}

func validQuote(price, confidence int64) *pricing.ValidatedPrice {
	return &pricing.ValidatedPrice{
		Asset:           "WETH",
		Price:           decimal.NewFromInt(price),
		Confidence:      decimal.NewFromInt(confidence),
		IsValid:         true,
		ValidationScore: 100,
	}
}

func adminACL() *RoleACL {
	acl := NewRoleACL()
	acl.Grant("admin", ActionRecoverBreaker, ActionSetEmergency, ActionConfigureFeed)
	return acl
}

func TestCircuitBreaker_CheckAndTrip(t *testing.T) {
	b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())

	require.NoError(t, b.Check("WETH"))
	assert.False(t, b.Tripped("WETH"))

	b.Trip(context.Background(), "WETH", "test trip")

	assert.True(t, b.Tripped("WETH"))
	assert.ErrorIs(t, b.Check("WETH"), errors.ErrCircuitBreakerTripped)

	// Independent assets are unaffected
	assert.NoError(t, b.Check("WBTC"))
	assert.ElementsMatch(t, []string{"WETH"}, b.TrippedAssets())
}

func TestCircuitBreaker_Observe(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *pricing.PriceFeedConfig
		prev     *pricing.ValidatedPrice
		current  *pricing.ValidatedPrice
		manip    *pricing.ManipulationResult
		wantTrip bool
	}{
		{
			name: "disabled breaker never trips",
			cfg: &pricing.PriceFeedConfig{
				Asset:                      "WETH",
				CircuitBreakerEnabled:      false,
				CircuitBreakerThresholdBps: decimal.NewFromInt(1000),
			},
			prev:     validQuote(100, 50),
			current:  validQuote(200, 50),
			wantTrip: false,
		},
		{
			name:     "high manipulation risk trips without a previous quote",
			cfg:      breakerFeedConfig(),
			current:  validQuote(100, 50),
			manip:    &pricing.ManipulationResult{Risk: pricing.RiskHigh, Pattern: pricing.PatternFlashCrash},
			wantTrip: true,
		},
		{
			name:     "no previous quote and no manipulation does not trip",
			cfg:      breakerFeedConfig(),
			current:  validQuote(100, 50),
			wantTrip: false,
		},
		{
			name:     "price move over threshold trips",
			cfg:      breakerFeedConfig(),
			prev:     validQuote(100, 50),
			current:  validQuote(115, 50),
			wantTrip: true,
		},
		{
			name:     "price move under threshold passes",
			cfg:      breakerFeedConfig(),
			prev:     validQuote(100, 50),
			current:  validQuote(105, 50),
			wantTrip: false,
		},
		{
			name:     "confidence collapse trips",
			cfg:      breakerFeedConfig(),
			prev:     validQuote(100, 80),
			current:  validQuote(100, 50),
			wantTrip: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())

			tripped := b.Observe(context.Background(), tt.cfg, tt.prev, tt.current, tt.manip)

			assert.Equal(t, tt.wantTrip, tripped)
			assert.Equal(t, tt.wantTrip, b.Tripped(tt.cfg.Asset))
		})
	}
}

func TestCircuitBreaker_TryAutoRecover(t *testing.T) {
	ctx := context.Background()

	t.Run("untripped asset is a no-op", func(t *testing.T) {
		b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())
		recovered, err := b.TryAutoRecover(ctx, "WETH", validQuote(100, 50))
		require.NoError(t, err)
		assert.False(t, recovered)
	})

	t.Run("recovery window still open", func(t *testing.T) {
		b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())
		b.Trip(ctx, "WETH", "test")

		recovered, err := b.TryAutoRecover(ctx, "WETH", validQuote(100, 50))
		assert.ErrorIs(t, err, errors.ErrCircuitBreakerTripped)
		assert.False(t, recovered)
		assert.True(t, b.Tripped("WETH"))
	})

	t.Run("window elapsed and clean quote recovers", func(t *testing.T) {
		b := NewCircuitBreaker(time.Millisecond, nil, adminACL(), nil, logger.Get())
		b.Trip(ctx, "WETH", "test")
		time.Sleep(10 * time.Millisecond)

		recovered, err := b.TryAutoRecover(ctx, "WETH", validQuote(100, 50))
		require.NoError(t, err)
		assert.True(t, recovered)
		assert.False(t, b.Tripped("WETH"))
	})

	t.Run("window elapsed but weak quote stays frozen", func(t *testing.T) {
		b := NewCircuitBreaker(time.Millisecond, nil, adminACL(), nil, logger.Get())
		b.Trip(ctx, "WETH", "test")
		time.Sleep(10 * time.Millisecond)

		weak := validQuote(100, 50)
		weak.ValidationScore = 60

		recovered, err := b.TryAutoRecover(ctx, "WETH", weak)
		require.NoError(t, err)
		assert.False(t, recovered)
		assert.True(t, b.Tripped("WETH"))
	})
}

func TestCircuitBreaker_ManualRecover(t *testing.T) {
	ctx := context.Background()
	b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())
	b.Trip(ctx, "WETH", "test")

	err := b.ManualRecover(ctx, "WETH", "intruder", "because")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.True(t, b.Tripped("WETH"))

	require.NoError(t, b.ManualRecover(ctx, "WETH", "admin", "verified feed healthy"))
	assert.False(t, b.Tripped("WETH"))
}

func TestCircuitBreaker_Emergency(t *testing.T) {
	ctx := context.Background()
	b := NewCircuitBreaker(time.Hour, nil, adminACL(), nil, logger.Get())

	assert.ErrorIs(t, b.SetEmergency(ctx, "intruder", "nope"), errors.ErrUnauthorized)
	assert.False(t, b.EmergencyActive())

	require.NoError(t, b.SetEmergency(ctx, "admin", "oracle incident"))
	assert.True(t, b.EmergencyActive())

	// Emergency overrides per-asset state for every asset
	assert.ErrorIs(t, b.Check("WETH"), errors.ErrEmergencyModeActive)
	assert.ErrorIs(t, b.Check("WBTC"), errors.ErrEmergencyModeActive)

	require.NoError(t, b.ClearEmergency(ctx, "admin", "incident resolved"))
	assert.False(t, b.EmergencyActive())
	assert.NoError(t, b.Check("WETH"))
}

// recordingProducer captures published events in memory
type recordingProducer struct {
	topics []string
	events []interface{}
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, event interface{}) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestCircuitBreaker_PublishesTransitions(t *testing.T) {
	ctx := context.Background()
	producer := &recordingProducer{}
	pub := events.NewPublisher(producer, logger.Get())
	b := NewCircuitBreaker(time.Hour, nil, adminACL(), pub, logger.Get())

	b.Trip(ctx, "WETH", "test trip")
	require.NoError(t, b.ManualRecover(ctx, "WETH", "admin", "feed verified"))
	require.NoError(t, b.SetEmergency(ctx, "admin", "drill"))
	require.NoError(t, b.ClearEmergency(ctx, "admin", "drill over"))

	require.Len(t, producer.events, 4)

	states := make([]string, 0, len(producer.events))
	for _, raw := range producer.events {
		ev, ok := raw.(*events.CircuitBreakerEvent)
		require.True(t, ok)
		states = append(states, ev.State)
	}
	assert.Equal(t, []string{"tripped", "recovered", "emergency_on", "emergency_off"}, states)

	// Emergency transitions route to their own topic
	assert.Equal(t, []string{
		kafka.TopicCircuitBreaker,
		kafka.TopicCircuitBreaker,
		kafka.TopicEmergencyMode,
		kafka.TopicEmergencyMode,
	}, producer.topics)
}
