package liquidation

import (
	"context"

	"citadel/internal/domain/position"
)

// Compile-time check
var _ Recorder = (*RepositoryRecorder)(nil)

// RepositoryRecorder persists round outcomes through the domain repositories
type RepositoryRecorder struct {
	positions position.Repository
	rounds    position.RoundRepository
}

// NewRepositoryRecorder creates a repository-backed recorder
func NewRepositoryRecorder(positions position.Repository, rounds position.RoundRepository) *RepositoryRecorder {
	return &RepositoryRecorder{
		positions: positions,
		rounds:    rounds,
	}
}

// SaveRound appends the round audit record
func (r *RepositoryRecorder) SaveRound(ctx context.Context, result *position.LiquidationRoundResult) error {
	return r.rounds.SaveRound(ctx, result)
}

// SavePosition persists the post-round position state
func (r *RepositoryRecorder) SavePosition(ctx context.Context, pos *position.Position) error {
	return r.positions.Save(ctx, pos)
}
