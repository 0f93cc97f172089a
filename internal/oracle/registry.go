package oracle

import (
	"sync"

	"citadel/internal/domain/pricing"
	"citadel/pkg/errors"
)

// feedState is the per-asset registry entry: config, bounded history and a
// monotonic version used to reject stale-client writes
type feedState struct {
	cfg     pricing.PriceFeedConfig
	history []pricing.PricePoint
	version uint64
}

// FeedRegistry is a concurrent-safe keyed store of per-asset feed
// configuration and bounded price history
type FeedRegistry struct {
	mu    sync.RWMutex
	feeds map[string]*feedState
}

// NewFeedRegistry creates an empty feed registry
func NewFeedRegistry() *FeedRegistry {
	return &FeedRegistry{feeds: make(map[string]*feedState)}
}

// Configure creates or replaces an asset's feed config. The caller passes
// the version it read; the write is rejected when the stored version has
// moved past it.
func (r *FeedRegistry) Configure(cfg pricing.PriceFeedConfig, version uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.feeds[cfg.Asset]
	if !ok {
		r.feeds[cfg.Asset] = &feedState{cfg: cfg, version: 1}
		return nil
	}

	if version != state.version {
		return errors.Wrapf(errors.ErrStaleVersion,
			"asset %s: have %d, got %d", cfg.Asset, state.version, version)
	}

	state.cfg = cfg
	state.version++
	return nil
}

// Config returns the asset's feed config and its current version
func (r *FeedRegistry) Config(asset string) (*pricing.PriceFeedConfig, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.feeds[asset]
	if !ok {
		return nil, 0, errors.Wrapf(errors.ErrPriceFeedNotConfigured, "asset %s", asset)
	}
	cfg := state.cfg
	return &cfg, state.version, nil
}

// Append adds a validated point to the asset's history, evicting the
// oldest point beyond the window
func (r *FeedRegistry) Append(asset string, point pricing.PricePoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.feeds[asset]
	if !ok {
		return errors.Wrapf(errors.ErrPriceFeedNotConfigured, "asset %s", asset)
	}

	state.history = append(state.history, point)
	if len(state.history) > pricing.HistoryWindow {
		state.history = state.history[len(state.history)-pricing.HistoryWindow:]
	}
	return nil
}

// History returns a copy of the asset's history, oldest first
func (r *FeedRegistry) History(asset string) []pricing.PricePoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.feeds[asset]
	if !ok {
		return nil
	}
	out := make([]pricing.PricePoint, len(state.history))
	copy(out, state.history)
	return out
}

// Assets lists all configured assets
func (r *FeedRegistry) Assets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := make([]string, 0, len(r.feeds))
	for asset := range r.feeds {
		assets = append(assets, asset)
	}
	return assets
}
