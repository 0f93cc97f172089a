package vault

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"citadel/pkg/errors"
)

// HolderState is the collateral holder's explicit state machine
type HolderState string

const (
	HolderAvailable  HolderState = "available"
	HolderLocked     HolderState = "locked"
	HolderLiquidated HolderState = "liquidated"
)

// Valid checks if holder state is valid
func (s HolderState) Valid() bool {
	switch s {
	case HolderAvailable, HolderLocked, HolderLiquidated:
		return true
	}
	return false
}

// String returns string representation
func (s HolderState) String() string {
	return string(s)
}

// CollateralHolder is the custody record binding locked collateral shares
// to exactly one position. It is an owned balance: all mutations go through
// the methods below under the per-position writer lock.
type CollateralHolder struct {
	ID         uuid.UUID       `db:"id"`
	PositionID uuid.UUID       `db:"position_id"`
	Shares     decimal.Decimal `db:"shares"`
	State      HolderState     `db:"state"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// NewCollateralHolder creates a locked holder for a position
func NewCollateralHolder(positionID uuid.UUID, shares decimal.Decimal) *CollateralHolder {
	return &CollateralHolder{
		ID:         uuid.New(),
		PositionID: positionID,
		Shares:     shares,
		State:      HolderLocked,
		UpdatedAt:  time.Now().UTC(),
	}
}

// BelongsTo verifies the holder is bound to the given position
func (h *CollateralHolder) BelongsTo(positionID uuid.UUID) bool {
	return h.PositionID == positionID
}

// Extract removes shares from the holder for liquidation. It never removes
// more than the holder has.
func (h *CollateralHolder) Extract(shares decimal.Decimal) (decimal.Decimal, error) {
	if h.State != HolderLocked {
		return decimal.Zero, errors.Wrapf(errors.ErrCollateralHolderMismatch,
			"holder %s in state %s", h.ID, h.State)
	}
	if shares.IsNegative() {
		return decimal.Zero, errors.ErrArithmeticUnderflow
	}

	taken := decimal.Min(shares, h.Shares)
	h.Shares = h.Shares.Sub(taken)
	h.UpdatedAt = time.Now().UTC()

	if h.Shares.IsZero() {
		h.State = HolderLiquidated
	}
	return taken, nil
}

// Release unlocks the remaining collateral back to the owner on full repayment
func (h *CollateralHolder) Release() (decimal.Decimal, error) {
	if h.State != HolderLocked {
		return decimal.Zero, errors.Wrapf(errors.ErrCollateralHolderMismatch,
			"holder %s in state %s", h.ID, h.State)
	}
	released := h.Shares
	h.Shares = decimal.Zero
	h.State = HolderAvailable
	h.UpdatedAt = time.Now().UTC()
	return released, nil
}
