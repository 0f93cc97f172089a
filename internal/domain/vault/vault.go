package vault

import (
	"context"

	"github.com/shopspring/decimal"
)

// Vault is the custody collaborator: it holds the underlying collateral
// asset and exposes share/asset conversion at the current exchange rate.
// Implementations live outside this module; tests use stubs.
type Vault interface {
	// ConvertToAssets values share-denominated collateral in the underlying asset
	ConvertToAssets(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error)

	// ConvertToShares converts an underlying asset amount to vault shares
	ConvertToShares(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error)

	// Withdraw redeems shares for the underlying asset
	Withdraw(ctx context.Context, shares decimal.Decimal) (decimal.Decimal, error)

	// Deposit locks an asset amount and mints shares
	Deposit(ctx context.Context, assets decimal.Decimal) (decimal.Decimal, error)

	// IsActive reports whether the vault accepts operations
	IsActive(ctx context.Context) (bool, error)
}
