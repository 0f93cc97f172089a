package position

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for position persistence
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)
	Save(ctx context.Context, pos *Position) error
	ListByStatus(ctx context.Context, status Status) ([]*Position, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Position, error)
}

// RoundRepository defines the interface for liquidation round audit records
type RoundRepository interface {
	SaveRound(ctx context.Context, result *LiquidationRoundResult) error
	ListRounds(ctx context.Context, positionID uuid.UUID) ([]*LiquidationRoundResult, error)
}
