package lendingservice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/domain/vault"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

var bpsFactor = decimal.NewFromInt(10000)

// RepaymentResult reports how a repayment was applied
type RepaymentResult struct {
	InterestPaid       decimal.Decimal
	PrincipalPaid      decimal.Decimal
	RemainingDebt      decimal.Decimal
	CollateralReleased decimal.Decimal // underlying asset units, zero unless fully repaid
	Closed             bool
}

// Service handles the borrower-side position lifecycle: repayment, close
// with collateral release, and borrow issuance bounds
type Service struct {
	positions position.Repository
	vlt       vault.Vault
	engine    *risk.Engine
	pools     *PoolRegistry
	log       *logger.Logger
}

// NewService creates a lending service
func NewService(
	positions position.Repository,
	vlt vault.Vault,
	engine *risk.Engine,
	pools *PoolRegistry,
	log *logger.Logger,
) *Service {
	return &Service{
		positions: positions,
		vlt:       vlt,
		engine:    engine,
		pools:     pools,
		log:       log.With("component", "lending_service"),
	}
}

// Repay applies a repayment to a position, interest before principal. Full
// repayment releases the remaining collateral and closes the position.
func (s *Service) Repay(ctx context.Context, pos *position.Position, holder *vault.CollateralHolder, amount decimal.Decimal) (*RepaymentResult, error) {
	if !amount.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "repay amount %s", amount)
	}
	if pos.Status.Terminal() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "position %s already %s", pos.ID, pos.Status)
	}
	if !holder.BelongsTo(pos.ID) {
		return nil, errors.Wrapf(errors.ErrCollateralHolderMismatch,
			"holder %s bound to %s", holder.ID, holder.PositionID)
	}

	interest, principal := pos.Repay(amount)
	remaining := pos.TotalDebt()

	result := &RepaymentResult{
		InterestPaid:  interest,
		PrincipalPaid: principal,
		RemainingDebt: remaining,
	}

	if remaining.IsZero() {
		released, err := s.close(ctx, pos, holder)
		if err != nil {
			// Debt bookkeeping already moved; surface the close failure
			// but persist the repayment
			if saveErr := s.positions.Save(ctx, pos); saveErr != nil {
				return nil, errors.Wrap(saveErr, "save repaid position")
			}
			return nil, err
		}
		result.CollateralReleased = released
		result.Closed = true
	}

	if err := s.positions.Save(ctx, pos); err != nil {
		return nil, errors.Wrap(err, "save repaid position")
	}

	s.log.Info("Repayment applied",
		"position_id", pos.ID,
		"interest", interest.String(),
		"principal", principal.String(),
		"remaining", remaining.String(),
		"closed", result.Closed,
	)

	return result, nil
}

// RepayCrossAsset would repay debt with a different asset via a swap. Swap
// routing is not integrated; callers must repay in the debt asset.
func (s *Service) RepayCrossAsset(ctx context.Context, pos *position.Position, asset string, amount decimal.Decimal) (*RepaymentResult, error) {
	return nil, errors.Wrapf(errors.ErrSwapNotSupported,
		"cannot repay %s debt with %s", pos.DebtAsset, asset)
}

// ValidateBorrow checks a proposed additional borrow against the tiered
// issuance limit. It bounds new debt only, never existing positions.
func (s *Service) ValidateBorrow(
	ctx context.Context,
	pos *position.Position,
	additionalDebtValue decimal.Decimal,
	collateralPrice, debtPrice *pricing.ValidatedPrice,
	assetTier risk.AssetTier,
	userTier risk.UserTier,
	bonusEnabled bool,
) error {
	if !additionalDebtValue.IsPositive() {
		return errors.Wrapf(errors.ErrInvalidInput, "borrow value %s", additionalDebtValue)
	}

	limitBps, err := risk.MaxBorrowLTV(assetTier, userTier, bonusEnabled)
	if err != nil {
		return err
	}

	snap, err := s.engine.Snapshot(ctx, pos, collateralPrice, debtPrice)
	if err != nil {
		return err
	}

	projected := snap.DebtValue.Add(additionalDebtValue).
		Mul(bpsFactor).Div(snap.CollateralValue)

	if projected.GreaterThan(limitBps) {
		return errors.Wrapf(errors.ErrInsufficientCollateral,
			"projected ltv %s exceeds issuance limit %s",
			projected.StringFixed(0), limitBps.StringFixed(0))
	}

	return nil
}

// close releases the remaining collateral and moves the position to Closed
func (s *Service) close(ctx context.Context, pos *position.Position, holder *vault.CollateralHolder) (decimal.Decimal, error) {
	shares, err := holder.Release()
	if err != nil {
		return decimal.Zero, err
	}

	assets := decimal.Zero
	if shares.IsPositive() {
		assets, err = s.vlt.Withdraw(ctx, shares)
		if err != nil {
			return decimal.Zero, errors.Wrap(err, "withdraw released collateral")
		}
	}

	// A liquidatable position that fully repays passes through Active
	if pos.Status == position.StatusLiquidatable {
		pos.Status = position.StatusActive
	}
	if !pos.Status.CanTransition(position.StatusClosed) {
		return decimal.Zero, errors.Wrapf(errors.ErrInvalidInput,
			"cannot close position in status %s", pos.Status)
	}
	pos.Status = position.StatusClosed
	pos.CollateralShares = decimal.Zero
	pos.UpdatedAt = time.Now().UTC()

	return assets, nil
}
