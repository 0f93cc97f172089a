package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"citadel/internal/domain/pricing"
	"citadel/internal/events"
	"citadel/internal/metrics"
	"citadel/internal/risk"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

const (
	defaultReadsPerSecond = 10
	defaultReadBurst      = 20
	archiveTimeout        = 5 * time.Second

	// hardStalenessFactor bounds how far past MaxStaleness a quote may be
	// before it is rejected outright instead of being scored down
	hardStalenessFactor = 4
)

// Service is the oracle read pipeline: rate limit, breaker gate, raw read
// with fallback, validation, manipulation detection, history append, cache,
// archive and audit events
type Service struct {
	primary   pricing.Source
	fallback  pricing.Source
	registry  *FeedRegistry
	validator *Validator
	detector  *Detector
	breaker   *risk.CircuitBreaker
	repo      pricing.Repository
	cache     pricing.Cache
	publisher *events.Publisher
	auth      risk.Authorizer
	log       *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates the oracle service. Fallback source, repository, cache
// and publisher are optional.
func NewService(
	primary, fallback pricing.Source,
	registry *FeedRegistry,
	validator *Validator,
	detector *Detector,
	breaker *risk.CircuitBreaker,
	repo pricing.Repository,
	cache pricing.Cache,
	publisher *events.Publisher,
	auth risk.Authorizer,
	log *logger.Logger,
) *Service {
	return &Service{
		primary:   primary,
		fallback:  fallback,
		registry:  registry,
		validator: validator,
		detector:  detector,
		breaker:   breaker,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		auth:      auth,
		log:       log.With("component", "oracle_service"),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// ConfigureFeed registers or updates a price feed. The version guard
// rejects concurrent configuration updates.
func (s *Service) ConfigureFeed(ctx context.Context, actor string, cfg pricing.PriceFeedConfig, version uint64) error {
	if err := s.auth.Authorize(actor, risk.ActionConfigureFeed); err != nil {
		return err
	}

	if err := s.registry.Configure(cfg, version); err != nil {
		return err
	}

	s.log.Info("Price feed configured",
		"asset", cfg.Asset,
		"actor", actor,
		"version", version,
	)
	return nil
}

// ValidatePrice runs the full read pipeline for one asset and returns the
// validated price together with the detector verdict
func (s *Service) ValidatePrice(ctx context.Context, asset string) (*pricing.ValidatedPrice, *pricing.ManipulationResult, error) {
	if err := s.limiter(asset).Wait(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "oracle rate limit")
	}

	if err := s.breaker.Check(asset); err != nil {
		return nil, nil, err
	}

	cfg, _, err := s.registry.Config(asset)
	if err != nil {
		return nil, nil, err
	}

	raw, src, err := s.read(ctx, asset)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()

	// Hard gates: quotes far beyond the staleness window or carrying no
	// confidence at all are rejected before scoring
	if age := now.Sub(raw.Timestamp); age > cfg.MaxStaleness*hardStalenessFactor {
		return nil, nil, errors.Wrapf(errors.ErrPriceStale,
			"asset %s quote is %s old", asset, age.Round(time.Second))
	}
	if !raw.Confidence.IsPositive() {
		return nil, nil, errors.Wrapf(errors.ErrPriceLowConfidence,
			"asset %s confidence %s", asset, raw.Confidence)
	}

	history := s.registry.History(asset)

	vp := s.validator.Validate(raw, history, cfg, now)
	vp.Source = src

	manip := s.detector.Detect(asset, raw.Price, raw.Confidence, history, cfg, now)
	vp.ManipulationRisk = vp.ManipulationRisk.AtLeast(manip.Risk)
	if manip.Risk >= pricing.RiskHigh {
		vp.IsValid = false
	}

	prev := s.cachedLatest(ctx, asset)
	s.breaker.Observe(ctx, cfg, prev, vp, manip)

	if vp.IsValid {
		point := pricing.PricePoint{
			Asset:           asset,
			Price:           vp.Price,
			Confidence:      vp.Confidence,
			Timestamp:       vp.Timestamp,
			ValidationScore: vp.ValidationScore,
		}
		if err := s.registry.Append(asset, point); err != nil {
			return nil, nil, err
		}
		s.storeLatest(ctx, vp)
		s.archive(point)
	}

	s.observe(ctx, vp, manip)

	if !vp.IsValid {
		return vp, manip, errors.Wrapf(errors.ErrPriceInvalid,
			"asset %s score %d risk %s", asset, vp.ValidationScore, vp.ManipulationRisk)
	}

	return vp, manip, nil
}

// DetectManipulation evaluates a quote against the configured feed without
// touching history, cache or the breaker
func (s *Service) DetectManipulation(ctx context.Context, asset string, price, confidence decimal.Decimal) (*pricing.ManipulationResult, error) {
	cfg, _, err := s.registry.Config(asset)
	if err != nil {
		return nil, err
	}

	result := s.detector.Detect(asset, price, confidence, s.registry.History(asset), cfg, time.Now().UTC())

	if result.IsManipulation {
		s.log.Warn("Manipulation pattern detected",
			"asset", asset,
			"pattern", result.Pattern,
			"risk", result.Risk,
			"score", result.ConfidenceScore,
		)
	}

	return result, nil
}

// read tries the primary source and falls back on error
func (s *Service) read(ctx context.Context, asset string) (*pricing.RawPrice, pricing.PriceSource, error) {
	start := time.Now()
	defer func() {
		metrics.OracleReadLatency.WithLabelValues(asset).Observe(time.Since(start).Seconds())
	}()

	raw, err := s.primary.GetPrice(ctx, asset)
	if err == nil {
		return raw, pricing.SourcePrimary, nil
	}

	if s.fallback == nil {
		return nil, "", errors.Wrapf(err, "primary source read for %s", asset)
	}

	s.log.Warn("Primary source failed, using fallback",
		"asset", asset,
		"error", err,
	)

	raw, ferr := s.fallback.GetPrice(ctx, asset)
	if ferr != nil {
		return nil, "", errors.Wrapf(ferr, "fallback source read for %s", asset)
	}
	return raw, pricing.SourceFallback, nil
}

func (s *Service) limiter(asset string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.limiters[asset]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(defaultReadsPerSecond), defaultReadBurst)
	s.limiters[asset] = l
	return l
}

func (s *Service) cachedLatest(ctx context.Context, asset string) *pricing.ValidatedPrice {
	if s.cache == nil {
		return nil
	}
	prev, err := s.cache.GetLatest(ctx, asset)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Warnf("Price cache read failed for %s: %v", asset, err)
		}
		return nil
	}
	return prev
}

func (s *Service) storeLatest(ctx context.Context, vp *pricing.ValidatedPrice) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLatest(ctx, vp); err != nil {
		s.log.Warnf("Price cache write failed for %s: %v", vp.Asset, err)
	}
}

// archive appends the point to the archive off the hot path
func (s *Service) archive(point pricing.PricePoint) {
	if s.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.repo.InsertPricePoints(ctx, []pricing.PricePoint{point}); err != nil {
			s.log.Warnf("Price archive write failed for %s: %v", point.Asset, err)
		}
	}()
}

// observe updates metrics, persists detector verdicts and emits audit
// events. Failures here never fail the read.
func (s *Service) observe(ctx context.Context, vp *pricing.ValidatedPrice, manip *pricing.ManipulationResult) {
	result := "valid"
	if !vp.IsValid {
		result = "invalid"
	}
	metrics.PriceValidations.WithLabelValues(vp.Asset, result).Inc()
	metrics.ValidationScore.WithLabelValues(vp.Asset).Set(float64(vp.ValidationScore))

	if manip.IsManipulation {
		metrics.ManipulationDetections.WithLabelValues(vp.Asset, manip.Pattern.String(), manip.Risk.String()).Inc()

		if s.repo != nil {
			rctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
			defer cancel()
			if err := s.repo.InsertManipulation(rctx, manip); err != nil {
				s.log.Warnf("Manipulation audit write failed for %s: %v", vp.Asset, err)
			}
		}
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPriceValidated(ctx, vp); err != nil {
		s.log.Warnf("Price event publish failed for %s: %v", vp.Asset, err)
	}
	if manip.IsManipulation {
		if err := s.publisher.PublishManipulationDetected(ctx, manip); err != nil {
			s.log.Warnf("Manipulation event publish failed for %s: %v", vp.Asset, err)
		}
	}
}
