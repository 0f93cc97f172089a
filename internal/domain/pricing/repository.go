package pricing

import (
	"context"
)

// Source delivers raw, unvalidated quotes from the upstream price network
type Source interface {
	// GetPrice returns the latest raw quote for an asset
	GetPrice(ctx context.Context, asset string) (*RawPrice, error)
}

// Repository defines the interface for the price-point archive (ClickHouse)
type Repository interface {
	// InsertPricePoints appends validated points to the archive
	InsertPricePoints(ctx context.Context, points []PricePoint) error

	// GetRecentPoints returns the latest points for an asset, newest last
	GetRecentPoints(ctx context.Context, asset string, limit int) ([]PricePoint, error)

	// InsertManipulation records a detector verdict for audit
	InsertManipulation(ctx context.Context, result *ManipulationResult) error
}

// Cache holds the latest validated price per asset (Redis)
type Cache interface {
	// SetLatest stores the latest validated price for its asset
	SetLatest(ctx context.Context, price *ValidatedPrice) error

	// GetLatest returns the cached validated price, or ErrNotFound
	GetLatest(ctx context.Context, asset string) (*ValidatedPrice, error)
}
