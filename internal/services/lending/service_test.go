package lendingservice

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citadel/internal/adapters/vaultdev"
	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/domain/vault"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

// memPositions is an in-memory position repository
type memPositions struct {
	saved []*position.Position
}

func (m *memPositions) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	return nil, errors.ErrNotFound
}

func (m *memPositions) Save(ctx context.Context, pos *position.Position) error {
	m.saved = append(m.saved, pos)
	return nil
}

func (m *memPositions) ListByStatus(ctx context.Context, status position.Status) ([]*position.Position, error) {
	return nil, nil
}

func (m *memPositions) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*position.Position, error) {
	return nil, nil
}

type serviceFixture struct {
	svc       *Service
	positions *memPositions
	vault     *vaultdev.FixedRateVault
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	vlt, err := vaultdev.New(decimal.NewFromInt(1))
	require.NoError(t, err)
	_, err = vlt.Deposit(context.Background(), decimal.NewFromInt(100000))
	require.NoError(t, err)

	log := logger.Get()
	positions := &memPositions{}
	svc := NewService(positions, vlt, risk.NewEngine(vlt, log), NewPoolRegistry(), log)

	return &serviceFixture{svc: svc, positions: positions, vault: vlt}
}

func activePosition(principal, interest int64) *position.Position {
	return &position.Position{
		ID:               uuid.New(),
		OwnerID:          uuid.New(),
		PoolID:           uuid.New(),
		CollateralAsset:  "WETH",
		DebtAsset:        "USDC",
		CollateralShares: decimal.NewFromInt(10),
		Principal:        decimal.NewFromInt(principal),
		AccruedInterest:  decimal.NewFromInt(interest),
		Status:           position.StatusActive,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestService_Repay(t *testing.T) {
	ctx := context.Background()

	t.Run("partial repayment pays interest first", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 100)
		holder := vault.NewCollateralHolder(pos.ID, pos.CollateralShares)

		result, err := f.svc.Repay(ctx, pos, holder, decimal.NewFromInt(300))
		require.NoError(t, err)

		assert.True(t, result.InterestPaid.Equal(decimal.NewFromInt(100)))
		assert.True(t, result.PrincipalPaid.Equal(decimal.NewFromInt(200)))
		assert.True(t, result.RemainingDebt.Equal(decimal.NewFromInt(800)))
		assert.False(t, result.Closed)

		assert.Equal(t, position.StatusActive, pos.Status)
		assert.Equal(t, vault.HolderLocked, holder.State)
		assert.Len(t, f.positions.saved, 1)
	})

	t.Run("full repayment closes and releases collateral", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 100)
		holder := vault.NewCollateralHolder(pos.ID, pos.CollateralShares)

		result, err := f.svc.Repay(ctx, pos, holder, decimal.NewFromInt(1100))
		require.NoError(t, err)

		assert.True(t, result.Closed)
		assert.True(t, result.RemainingDebt.IsZero())
		assert.True(t, result.CollateralReleased.Equal(decimal.NewFromInt(10)))

		assert.Equal(t, position.StatusClosed, pos.Status)
		assert.True(t, pos.CollateralShares.IsZero())
		assert.Equal(t, vault.HolderAvailable, holder.State)
	})

	t.Run("liquidatable position can fully repay to closed", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 0)
		pos.Status = position.StatusLiquidatable
		holder := vault.NewCollateralHolder(pos.ID, pos.CollateralShares)

		result, err := f.svc.Repay(ctx, pos, holder, decimal.NewFromInt(1000))
		require.NoError(t, err)

		assert.True(t, result.Closed)
		assert.Equal(t, position.StatusClosed, pos.Status)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 0)
		holder := vault.NewCollateralHolder(pos.ID, pos.CollateralShares)

		_, err := f.svc.Repay(ctx, pos, holder, decimal.Zero)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("terminal position is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 0)
		pos.Status = position.StatusLiquidated
		holder := vault.NewCollateralHolder(pos.ID, pos.CollateralShares)

		_, err := f.svc.Repay(ctx, pos, holder, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("mismatched holder is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		pos := activePosition(1000, 0)
		holder := vault.NewCollateralHolder(uuid.New(), pos.CollateralShares)

		_, err := f.svc.Repay(ctx, pos, holder, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, errors.ErrCollateralHolderMismatch)
	})
}

func TestService_RepayCrossAsset(t *testing.T) {
	f := newServiceFixture(t)
	pos := activePosition(1000, 0)

	_, err := f.svc.RepayCrossAsset(context.Background(), pos, "WBTC", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, errors.ErrSwapNotSupported)
}

func TestService_ValidateBorrow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	collateral := &pricing.ValidatedPrice{Asset: "WETH", Price: decimal.NewFromInt(100), IsValid: true}
	debt := &pricing.ValidatedPrice{Asset: "USDC", Price: decimal.NewFromInt(1), IsValid: true}

	// 10 shares at 100 = 1000 collateral value, 500 existing debt
	pos := activePosition(500, 0)

	// Projected LTV 7000 against the bluechip limit of 8000
	err := f.svc.ValidateBorrow(ctx, pos, decimal.NewFromInt(200), collateral, debt,
		risk.TierBluechip, risk.UserTierNone, false)
	assert.NoError(t, err)

	// Projected LTV 9000 exceeds the limit
	err = f.svc.ValidateBorrow(ctx, pos, decimal.NewFromInt(400), collateral, debt,
		risk.TierBluechip, risk.UserTierNone, false)
	assert.ErrorIs(t, err, errors.ErrInsufficientCollateral)

	// The user-tier bonus lifts the limit to 8250
	err = f.svc.ValidateBorrow(ctx, pos, decimal.NewFromInt(320), collateral, debt,
		risk.TierBluechip, risk.UserTierPlus, true)
	assert.NoError(t, err)

	// Zero borrow value is rejected outright
	err = f.svc.ValidateBorrow(ctx, pos, decimal.Zero, collateral, debt,
		risk.TierBluechip, risk.UserTierNone, false)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestPoolRegistry(t *testing.T) {
	r := NewPoolRegistry()
	poolID := uuid.New()

	cfg := &position.PoolLiquidationConfig{
		Enabled:           true,
		WarningLTVBps:     decimal.NewFromInt(7000),
		LiquidationLTVBps: decimal.NewFromInt(8000),
	}
	require.NoError(t, r.Configure(poolID, cfg))

	got, err := r.Get(poolID)
	require.NoError(t, err)
	assert.True(t, got.LiquidationLTVBps.Equal(decimal.NewFromInt(8000)))

	// Returned config is a copy
	got.LiquidationLTVBps = decimal.NewFromInt(1)
	again, err := r.Get(poolID)
	require.NoError(t, err)
	assert.True(t, again.LiquidationLTVBps.Equal(decimal.NewFromInt(8000)))

	// Inverted thresholds are rejected
	bad := &position.PoolLiquidationConfig{
		WarningLTVBps:     decimal.NewFromInt(8000),
		LiquidationLTVBps: decimal.NewFromInt(7000),
	}
	assert.ErrorIs(t, r.Configure(poolID, bad), errors.ErrInvalidInput)
	assert.ErrorIs(t, r.Configure(poolID, nil), errors.ErrInvalidInput)

	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// ConfigFor resolves through the position's pool
	pos := &position.Position{PoolID: poolID}
	resolved, err := r.ConfigFor(context.Background(), pos)
	require.NoError(t, err)
	assert.True(t, resolved.Enabled)
}
