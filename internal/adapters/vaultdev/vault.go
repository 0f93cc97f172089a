package vaultdev

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/vault"
	"citadel/pkg/errors"
)

// Compile-time check
var _ vault.Vault = (*FixedRateVault)(nil)

// FixedRateVault is a development stand-in for the external custody vault.
// It converts shares and assets at a fixed exchange rate and tracks total
// assets held.
type FixedRateVault struct {
	mu     sync.Mutex
	rate   decimal.Decimal // assets per share
	assets decimal.Decimal
	active bool
}

// New creates a fixed-rate vault. rate is the asset value of one share.
func New(rate decimal.Decimal) (*FixedRateVault, error) {
	if !rate.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "vault rate %s", rate)
	}
	return &FixedRateVault{
		rate:   rate,
		assets: decimal.Zero,
		active: true,
	}, nil
}

// ConvertToAssets values share-denominated collateral in the underlying asset
func (v *FixedRateVault) ConvertToAssets(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return shares.Mul(v.rate), nil
}

// ConvertToShares converts an underlying asset amount to vault shares
func (v *FixedRateVault) ConvertToShares(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return assets.Div(v.rate), nil
}

// Withdraw redeems shares for the underlying asset
func (v *FixedRateVault) Withdraw(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.active {
		return decimal.Zero, errors.ErrVaultInactive
	}

	out := shares.Mul(v.rate)
	if out.GreaterThan(v.assets) {
		return decimal.Zero, errors.Wrapf(errors.ErrInsufficientLiquidity,
			"requested %s, held %s", out.String(), v.assets.String())
	}

	v.assets = v.assets.Sub(out)
	return out, nil
}

// Deposit locks an asset amount and mints shares
func (v *FixedRateVault) Deposit(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.active {
		return decimal.Zero, errors.ErrVaultInactive
	}
	if !assets.IsPositive() {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput, "deposit %s", assets)
	}

	v.assets = v.assets.Add(assets)
	return assets.Div(v.rate), nil
}

// TotalAssets reports the assets currently held
func (v *FixedRateVault) TotalAssets(ctx context.Context) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.assets, nil
}

// IsActive reports whether the vault accepts operations
func (v *FixedRateVault) IsActive(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active, nil
}

// SetActive toggles the vault for tests and operational drills
func (v *FixedRateVault) SetActive(active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = active
}

// SetRate updates the exchange rate
func (v *FixedRateVault) SetRate(rate decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if rate.IsPositive() {
		v.rate = rate
	}
}
