package risk

import (
	"github.com/shopspring/decimal"

	"citadel/pkg/errors"
)

// AssetTier groups collateral assets by quality for borrow limits
type AssetTier string

const (
	TierStable   AssetTier = "stable"
	TierBluechip AssetTier = "bluechip"
	TierVolatile AssetTier = "volatile"
	TierExotic   AssetTier = "exotic"
)

// UserTier grants an optional max-LTV bonus to qualified borrowers
type UserTier string

const (
	UserTierNone UserTier = "none"
	UserTierPlus UserTier = "plus"
	UserTierPro  UserTier = "pro"
)

// Maximum borrow LTV per asset tier, basis points. These bound new-borrow
// issuance only; liquidation thresholds come from the pool config.
var assetTierMaxLTVBps = map[AssetTier]decimal.Decimal{
	TierStable:   decimal.NewFromInt(9000),
	TierBluechip: decimal.NewFromInt(8000),
	TierVolatile: decimal.NewFromInt(6500),
	TierExotic:   decimal.NewFromInt(5000),
}

// User-tier bonus in basis points, applied only when the bonus toggle is on
var userTierBonusBps = map[UserTier]decimal.Decimal{
	UserTierNone: decimal.Zero,
	UserTierPlus: decimal.NewFromInt(250),
	UserTierPro:  decimal.NewFromInt(500),
}

// maxBorrowLTVCap keeps a bonus from pushing the borrow limit into the
// liquidation band
var maxBorrowLTVCapBps = decimal.NewFromInt(9200)

// MaxBorrowLTV returns the maximum issuance LTV for an asset tier, with the
// optional user-tier bonus applied
func MaxBorrowLTV(asset AssetTier, user UserTier, bonusEnabled bool) (decimal.Decimal, error) {
	base, ok := assetTierMaxLTVBps[asset]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput, "unknown asset tier %q", asset)
	}

	if !bonusEnabled {
		return base, nil
	}

	bonus, ok := userTierBonusBps[user]
	if !ok {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput, "unknown user tier %q", user)
	}

	limit := base.Add(bonus)
	if limit.GreaterThan(maxBorrowLTVCapBps) {
		limit = maxBorrowLTVCapBps
	}
	return limit, nil
}
