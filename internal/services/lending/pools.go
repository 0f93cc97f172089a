package lendingservice

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"citadel/internal/domain/position"
	"citadel/pkg/errors"
)

// PoolRegistry is the in-process store of per-pool liquidation parameters
type PoolRegistry struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]*position.PoolLiquidationConfig
}

// NewPoolRegistry creates an empty pool registry
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{
		pools: make(map[uuid.UUID]*position.PoolLiquidationConfig),
	}
}

// Configure registers or replaces a pool's liquidation parameters
func (r *PoolRegistry) Configure(poolID uuid.UUID, cfg *position.PoolLiquidationConfig) error {
	if cfg == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "nil config for pool %s", poolID)
	}
	if cfg.LiquidationLTVBps.LessThanOrEqual(cfg.WarningLTVBps) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"liquidation threshold %s must exceed warning threshold %s",
			cfg.LiquidationLTVBps.StringFixed(0), cfg.WarningLTVBps.StringFixed(0))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *cfg
	r.pools[poolID] = &cp
	return nil
}

// Get returns a copy of the pool's config
func (r *PoolRegistry) Get(poolID uuid.UUID) (*position.PoolLiquidationConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.pools[poolID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "pool %s not configured", poolID)
	}

	cp := *cfg
	return &cp, nil
}

// ConfigFor resolves the liquidation config of a position's pool
func (r *PoolRegistry) ConfigFor(ctx context.Context, pos *position.Position) (*position.PoolLiquidationConfig, error) {
	return r.Get(pos.PoolID)
}
