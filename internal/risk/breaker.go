package risk

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/pricing"
	"citadel/internal/events"
	"citadel/internal/metrics"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

const (
	// DefaultRecoveryWindow is how long an asset stays frozen after a trip
	DefaultRecoveryWindow = time.Hour

	// autoRecoverMinScore is the validation score required for automatic recovery
	autoRecoverMinScore = 80

	breakerKeyPrefix = "breaker:asset:"
	emergencyKey     = "breaker:emergency"
)

var confidenceTripDrop = decimal.NewFromInt(20)

// BreakerStore mirrors breaker state to a shared store (Redis) so that
// sibling processes fail fast too. Mirror writes are best effort.
type BreakerStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// TripRecord is the serialized per-asset breaker state
type TripRecord struct {
	Asset     string    `json:"asset"`
	Reason    string    `json:"reason"`
	TrippedAt time.Time `json:"tripped_at"`
	RecoverAt time.Time `json:"recover_at"`
}

// assetState tracks one asset's breaker
type assetState struct {
	tripped   bool
	reason    string
	trippedAt time.Time
	recoverAt time.Time
}

// CircuitBreaker gates price reads and liquidation entry points per asset,
// with a separate admin-controlled global emergency flag that overrides
// all per-asset state
type CircuitBreaker struct {
	mu     sync.RWMutex
	assets map[string]*assetState

	emergency       bool
	emergencyReason string

	recoveryWindow time.Duration
	store          BreakerStore
	auth           Authorizer
	publisher      *events.Publisher
	log            *logger.Logger
}

// NewCircuitBreaker creates a circuit breaker. store may be nil (no mirror)
// and publisher may be nil (no event emission).
func NewCircuitBreaker(recoveryWindow time.Duration, store BreakerStore, auth Authorizer, publisher *events.Publisher, log *logger.Logger) *CircuitBreaker {
	if recoveryWindow <= 0 {
		recoveryWindow = DefaultRecoveryWindow
	}
	return &CircuitBreaker{
		assets:         make(map[string]*assetState),
		recoveryWindow: recoveryWindow,
		store:          store,
		auth:           auth,
		publisher:      publisher,
		log:            log.With("component", "circuit_breaker"),
	}
}

// Check fails fast when the asset is frozen or the global emergency flag is
// set. It is the first call of every price read and liquidation entry point.
func (b *CircuitBreaker) Check(asset string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.emergency {
		return errors.Wrapf(errors.ErrEmergencyModeActive, "reason: %s", b.emergencyReason)
	}

	state, ok := b.assets[asset]
	if ok && state.tripped {
		return errors.Wrapf(errors.ErrCircuitBreakerTripped,
			"asset %s frozen until %s: %s", asset, state.recoverAt.Format(time.RFC3339), state.reason)
	}
	return nil
}

// Observe evaluates a validated quote against the previous one and trips
// the asset breaker when a trip condition holds. Returns true if tripped.
func (b *CircuitBreaker) Observe(
	ctx context.Context,
	cfg *pricing.PriceFeedConfig,
	prev, current *pricing.ValidatedPrice,
	manip *pricing.ManipulationResult,
) bool {
	if !cfg.CircuitBreakerEnabled {
		return false
	}

	if manip != nil && manip.Risk >= pricing.RiskHigh {
		b.Trip(ctx, cfg.Asset, "manipulation risk high: "+manip.Pattern.String())
		return true
	}

	if prev == nil {
		return false
	}

	if !prev.Price.IsZero() {
		changeBps := current.Price.Sub(prev.Price).Div(prev.Price).Abs().Mul(decimal.NewFromInt(10000))
		if changeBps.GreaterThan(cfg.CircuitBreakerThresholdBps) {
			b.Trip(ctx, cfg.Asset, "price change "+changeBps.StringFixed(0)+"bps over threshold")
			return true
		}
	}

	if prev.Confidence.Sub(current.Confidence).GreaterThan(confidenceTripDrop) {
		b.Trip(ctx, cfg.Asset, "confidence dropped more than 20 points")
		return true
	}

	return false
}

// Trip freezes an asset for the recovery window
func (b *CircuitBreaker) Trip(ctx context.Context, asset, reason string) {
	now := time.Now().UTC()

	b.mu.Lock()
	b.assets[asset] = &assetState{
		tripped:   true,
		reason:    reason,
		trippedAt: now,
		recoverAt: now.Add(b.recoveryWindow),
	}
	b.mu.Unlock()

	metrics.CircuitBreakerTrips.WithLabelValues(asset, reason).Inc()
	b.log.Warn("Circuit breaker tripped", "asset", asset, "reason", reason)

	b.mirror(ctx, asset, &TripRecord{
		Asset:     asset,
		Reason:    reason,
		TrippedAt: now,
		RecoverAt: now.Add(b.recoveryWindow),
	})
	b.notify(ctx, asset, "tripped", reason, "system")
}

// TryAutoRecover clears the asset breaker when the recovery window has
// elapsed and the latest quote validates cleanly. Recovery is an explicit
// action, never implicit in Check.
func (b *CircuitBreaker) TryAutoRecover(ctx context.Context, asset string, latest *pricing.ValidatedPrice) (bool, error) {
	b.mu.Lock()
	state, ok := b.assets[asset]
	if !ok || !state.tripped {
		b.mu.Unlock()
		return false, nil
	}

	if time.Now().UTC().Before(state.recoverAt) {
		b.mu.Unlock()
		return false, errors.Wrapf(errors.ErrCircuitBreakerTripped,
			"asset %s recovery window open until %s", asset, state.recoverAt.Format(time.RFC3339))
	}

	if latest.ValidationScore <= autoRecoverMinScore || latest.ManipulationRisk >= pricing.RiskMedium {
		b.mu.Unlock()
		return false, nil
	}

	delete(b.assets, asset)
	b.mu.Unlock()

	b.log.Info("Circuit breaker auto-recovered", "asset", asset, "score", latest.ValidationScore)
	b.unmirror(ctx, asset)
	b.notify(ctx, asset, "recovered", "validation recovered", "system")
	return true, nil
}

// ManualRecover clears the asset breaker on an authorized override with a
// logged reason
func (b *CircuitBreaker) ManualRecover(ctx context.Context, asset, actor, reason string) error {
	if err := b.auth.Authorize(actor, ActionRecoverBreaker); err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.assets, asset)
	b.mu.Unlock()

	b.log.Warn("Circuit breaker manually recovered",
		"asset", asset,
		"actor", actor,
		"reason", reason,
	)
	b.unmirror(ctx, asset)
	b.notify(ctx, asset, "recovered", reason, actor)
	return nil
}

// SetEmergency raises the global emergency flag; it overrides all per-asset
// state and must be explicitly cleared
func (b *CircuitBreaker) SetEmergency(ctx context.Context, actor, reason string) error {
	if err := b.auth.Authorize(actor, ActionSetEmergency); err != nil {
		return err
	}

	b.mu.Lock()
	b.emergency = true
	b.emergencyReason = reason
	b.mu.Unlock()

	metrics.EmergencyMode.Set(1)
	b.log.Error("Emergency mode activated", "actor", actor, "reason", reason)

	if b.store != nil {
		if err := b.store.Set(ctx, emergencyKey, reason, 0); err != nil {
			b.log.Warnf("Failed to mirror emergency flag: %v", err)
		}
	}
	b.notify(ctx, "", "emergency_on", reason, actor)
	return nil
}

// ClearEmergency lowers the global emergency flag
func (b *CircuitBreaker) ClearEmergency(ctx context.Context, actor, reason string) error {
	if err := b.auth.Authorize(actor, ActionSetEmergency); err != nil {
		return err
	}

	b.mu.Lock()
	b.emergency = false
	b.emergencyReason = ""
	b.mu.Unlock()

	metrics.EmergencyMode.Set(0)
	b.log.Warn("Emergency mode cleared", "actor", actor, "reason", reason)

	if b.store != nil {
		if err := b.store.Delete(ctx, emergencyKey); err != nil {
			b.log.Warnf("Failed to clear mirrored emergency flag: %v", err)
		}
	}
	b.notify(ctx, "", "emergency_off", reason, actor)
	return nil
}

// EmergencyActive reports the global emergency flag
func (b *CircuitBreaker) EmergencyActive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.emergency
}

// Tripped reports the asset breaker state
func (b *CircuitBreaker) Tripped(asset string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	state, ok := b.assets[asset]
	return ok && state.tripped
}

// TrippedAssets returns the assets currently frozen
func (b *CircuitBreaker) TrippedAssets() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	assets := make([]string, 0, len(b.assets))
	for asset, state := range b.assets {
		if state.tripped {
			assets = append(assets, asset)
		}
	}
	return assets
}

func (b *CircuitBreaker) mirror(ctx context.Context, asset string, rec *TripRecord) {
	if b.store == nil {
		return
	}
	if err := b.store.Set(ctx, breakerKeyPrefix+asset, rec, b.recoveryWindow); err != nil {
		b.log.Warnf("Failed to mirror breaker state for %s: %v", asset, err)
	}
}

func (b *CircuitBreaker) unmirror(ctx context.Context, asset string) {
	if b.store == nil {
		return
	}
	if err := b.store.Delete(ctx, breakerKeyPrefix+asset); err != nil {
		b.log.Warnf("Failed to clear mirrored breaker state for %s: %v", asset, err)
	}
}

// notify emits a breaker transition event; emission failures are logged and
// never block the transition itself
func (b *CircuitBreaker) notify(ctx context.Context, asset, state, reason, actor string) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.PublishCircuitBreaker(ctx, asset, state, reason, actor); err != nil {
		b.log.Warnf("Failed to publish breaker transition for %q: %v", asset, err)
	}
}
