package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/domain/pricing"
	"citadel/pkg/errors"
)

// Compile-time check
var _ pricing.Source = (*StaticSource)(nil)

// StaticSource serves quotes from an in-memory table. It stands in for the
// real feed transport in development and tests.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]pricing.RawPrice
}

// NewStaticSource creates an empty static source
func NewStaticSource() *StaticSource {
	return &StaticSource{
		quotes: make(map[string]pricing.RawPrice),
	}
}

// SetQuote stores the quote returned for an asset, stamped with the current
// time
func (s *StaticSource) SetQuote(asset string, price, confidence decimal.Decimal) {
	s.SetQuoteAt(asset, price, confidence, time.Now().UTC())
}

// SetQuoteAt stores a quote with an explicit timestamp
func (s *StaticSource) SetQuoteAt(asset string, price, confidence decimal.Decimal, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[asset] = pricing.RawPrice{
		Asset:      asset,
		Price:      price,
		Confidence: confidence,
		Timestamp:  ts,
		Valid:      true,
	}
}

// GetPrice returns the stored quote for an asset
func (s *StaticSource) GetPrice(ctx context.Context, asset string) (*pricing.RawPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[asset]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPriceFeedNotConfigured, "no quote for %s", asset)
	}
	return &quote, nil
}
