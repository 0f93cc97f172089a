package clickhouse

import (
	"context"
	"time"

	"citadel/internal/adapters/clickhouse"
	"citadel/internal/domain/pricing"
	"citadel/pkg/errors"
)

// Compile-time check
var _ pricing.Repository = (*PricePointRepository)(nil)

// PricePointRepository archives validated price points and detector
// verdicts in ClickHouse
type PricePointRepository struct {
	client *clickhouse.Client
}

// NewPricePointRepository creates a new price point repository
func NewPricePointRepository(client *clickhouse.Client) *PricePointRepository {
	return &PricePointRepository{client: client}
}

// InsertPricePoints appends validated points to the archive
func (r *PricePointRepository) InsertPricePoints(ctx context.Context, points []pricing.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, `
		INSERT INTO price_points (asset, price, confidence, timestamp, validation_score)`)
	if err != nil {
		return errors.Wrap(err, "prepare price point batch")
	}

	for _, p := range points {
		if err := batch.AppendStruct(&p); err != nil {
			return errors.Wrap(err, "append price point")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send price point batch")
	}

	return nil
}

// GetRecentPoints returns the latest points for an asset, newest last
func (r *PricePointRepository) GetRecentPoints(ctx context.Context, asset string, limit int) ([]pricing.PricePoint, error) {
	if limit <= 0 {
		limit = pricing.HistoryWindow
	}

	var points []pricing.PricePoint

	query := `
		SELECT asset, price, confidence, timestamp, validation_score
		FROM price_points
		WHERE asset = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	if err := r.client.Query(ctx, &points, query, asset, limit); err != nil {
		return nil, errors.Wrap(err, "select recent price points")
	}

	// Reverse to oldest-first, the order the validator consumes
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return points, nil
}

// manipulationRow flattens a detector verdict for the audit table
type manipulationRow struct {
	Asset           string    `ch:"asset"`
	Pattern         string    `ch:"pattern"`
	Risk            string    `ch:"risk"`
	ConfidenceScore int32     `ch:"confidence_score"`
	Action          string    `ch:"action"`
	DetectorsFired  int32     `ch:"detectors_fired"`
	DetectedAt      time.Time `ch:"detected_at"`
}

// InsertManipulation records a detector verdict for audit
func (r *PricePointRepository) InsertManipulation(ctx context.Context, result *pricing.ManipulationResult) error {
	batch, err := r.client.Conn().PrepareBatch(ctx, `
		INSERT INTO manipulation_events (asset, pattern, risk, confidence_score, action, detectors_fired, detected_at)`)
	if err != nil {
		return errors.Wrap(err, "prepare manipulation batch")
	}

	row := &manipulationRow{
		Asset:           result.Asset,
		Pattern:         result.Pattern.String(),
		Risk:            result.Risk.String(),
		ConfidenceScore: int32(result.ConfidenceScore),
		Action:          string(result.Action),
		DetectorsFired:  int32(result.FiredCount()),
		DetectedAt:      result.DetectedAt,
	}

	if err := batch.AppendStruct(row); err != nil {
		return errors.Wrap(err, "append manipulation row")
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send manipulation batch")
	}

	return nil
}
