package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"citadel/internal/domain/position"
	"citadel/pkg/errors"
)

// Compile-time check
var _ position.Repository = (*PositionRepository)(nil)

// PositionRepository implements position.Repository using sqlx
type PositionRepository struct {
	db DBTX
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db DBTX) *PositionRepository {
	return &PositionRepository{db: db}
}

// GetByID retrieves a position by ID
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	var p position.Position

	query := `SELECT * FROM positions WHERE id = $1`

	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "position %s", id)
		}
		return nil, errors.Wrap(err, "get position")
	}

	return &p, nil
}

// Save upserts a position
func (r *PositionRepository) Save(ctx context.Context, p *position.Position) error {
	query := `
		INSERT INTO positions (
			id, owner_id, pool_id,
			collateral_asset, debt_asset, collateral_shares,
			principal, accrued_interest,
			status, created_at, maturity_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			collateral_shares = EXCLUDED.collateral_shares,
			principal = EXCLUDED.principal,
			accrued_interest = EXCLUDED.accrued_interest,
			status = EXCLUDED.status,
			maturity_at = EXCLUDED.maturity_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.PoolID,
		p.CollateralAsset, p.DebtAsset, p.CollateralShares,
		p.Principal, p.AccruedInterest,
		p.Status, p.CreatedAt, p.MaturityAt,
	)
	if err != nil {
		return errors.Wrap(err, "save position")
	}

	return nil
}

// ListByStatus retrieves all positions in a given status
func (r *PositionRepository) ListByStatus(ctx context.Context, status position.Status) ([]*position.Position, error) {
	var positions []*position.Position

	query := `
		SELECT * FROM positions
		WHERE status = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &positions, query, status); err != nil {
		return nil, errors.Wrap(err, "list positions by status")
	}

	return positions, nil
}

// ListByOwner retrieves all positions for an owner
func (r *PositionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*position.Position, error) {
	var positions []*position.Position

	query := `
		SELECT * FROM positions
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &positions, query, ownerID); err != nil {
		return nil, errors.Wrap(err, "list positions by owner")
	}

	return positions, nil
}
