package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"citadel/internal/domain/position"
	"citadel/pkg/errors"
)

// Compile-time check
var _ position.RoundRepository = (*LiquidationRoundRepository)(nil)

// LiquidationRoundRepository persists liquidation round audit records
type LiquidationRoundRepository struct {
	db DBTX
}

// NewLiquidationRoundRepository creates a new liquidation round repository
func NewLiquidationRoundRepository(db DBTX) *LiquidationRoundRepository {
	return &LiquidationRoundRepository{db: db}
}

// roundRow flattens the penalty distribution into columns
type roundRow struct {
	ID         uuid.UUID `db:"id"`
	PositionID uuid.UUID `db:"position_id"`
	Round      int       `db:"round"`

	CollateralLiquidated decimal.Decimal `db:"collateral_liquidated"`
	DebtRepaid           decimal.Decimal `db:"debt_repaid"`
	PenaltyCollected     decimal.Decimal `db:"penalty_collected"`
	RewardPaid           decimal.Decimal `db:"reward_paid"`
	CollateralReturned   decimal.Decimal `db:"collateral_returned"`
	FullyLiquidated      bool            `db:"fully_liquidated"`

	LTVBeforeBps decimal.Decimal `db:"ltv_before_bps"`
	LTVAfterBps  decimal.Decimal `db:"ltv_after_bps"`

	LiquidatorShare         decimal.Decimal `db:"liquidator_share"`
	PlatformShare           decimal.Decimal `db:"platform_share"`
	InsuranceShare          decimal.Decimal `db:"insurance_share"`
	BorrowerProtectionShare decimal.Decimal `db:"borrower_protection_share"`

	ExecutedAt time.Time `db:"executed_at"`
}

func (row *roundRow) toDomain() *position.LiquidationRoundResult {
	return &position.LiquidationRoundResult{
		ID:                   row.ID,
		PositionID:           row.PositionID,
		Round:                row.Round,
		CollateralLiquidated: row.CollateralLiquidated,
		DebtRepaid:           row.DebtRepaid,
		PenaltyCollected:     row.PenaltyCollected,
		RewardPaid:           row.RewardPaid,
		CollateralReturned:   row.CollateralReturned,
		FullyLiquidated:      row.FullyLiquidated,
		LTVBeforeBps:         row.LTVBeforeBps,
		LTVAfterBps:          row.LTVAfterBps,
		Distribution: position.PenaltyDistribution{
			LiquidatorShare:         row.LiquidatorShare,
			PlatformShare:           row.PlatformShare,
			InsuranceShare:          row.InsuranceShare,
			BorrowerProtectionShare: row.BorrowerProtectionShare,
		},
		ExecutedAt: row.ExecutedAt,
	}
}

// SaveRound inserts one executed round. Rounds are append-only.
func (r *LiquidationRoundRepository) SaveRound(ctx context.Context, result *position.LiquidationRoundResult) error {
	query := `
		INSERT INTO liquidation_rounds (
			id, position_id, round,
			collateral_liquidated, debt_repaid, penalty_collected,
			reward_paid, collateral_returned, fully_liquidated,
			ltv_before_bps, ltv_after_bps,
			liquidator_share, platform_share, insurance_share, borrower_protection_share,
			executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.PositionID, result.Round,
		result.CollateralLiquidated, result.DebtRepaid, result.PenaltyCollected,
		result.RewardPaid, result.CollateralReturned, result.FullyLiquidated,
		result.LTVBeforeBps, result.LTVAfterBps,
		result.Distribution.LiquidatorShare, result.Distribution.PlatformShare,
		result.Distribution.InsuranceShare, result.Distribution.BorrowerProtectionShare,
		result.ExecutedAt,
	)
	if err != nil {
		return errors.Wrap(err, "save liquidation round")
	}

	return nil
}

// ListRounds retrieves all rounds for a position in execution order
func (r *LiquidationRoundRepository) ListRounds(ctx context.Context, positionID uuid.UUID) ([]*position.LiquidationRoundResult, error) {
	var rows []*roundRow

	query := `
		SELECT * FROM liquidation_rounds
		WHERE position_id = $1
		ORDER BY round ASC, executed_at ASC`

	if err := r.db.SelectContext(ctx, &rows, query, positionID); err != nil {
		return nil, errors.Wrap(err, "list liquidation rounds")
	}

	results := make([]*position.LiquidationRoundResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toDomain())
	}

	return results, nil
}
