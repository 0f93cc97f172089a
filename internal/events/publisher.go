package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"citadel/internal/adapters/kafka"
	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/pkg/logger"
)

// Producer is the broker client events are written through. Satisfied by
// the Kafka producer adapter.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher publishes audit events to Kafka
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// PublishPriceValidated publishes the outcome of an oracle read
func (p *Publisher) PublishPriceValidated(ctx context.Context, vp *pricing.ValidatedPrice) error {
	topic := kafka.TopicPriceValidated
	if !vp.IsValid {
		topic = kafka.TopicPriceRejected
	}

	event := &PriceValidatedEvent{
		EventID:          newEventID(),
		Asset:            vp.Asset,
		Price:            vp.Price,
		Confidence:       vp.Confidence,
		ValidationScore:  vp.ValidationScore,
		IsValid:          vp.IsValid,
		ManipulationRisk: vp.ManipulationRisk.String(),
		Source:           vp.Source.String(),
		Timestamp:        vp.Timestamp,
	}

	return p.publish(ctx, topic, vp.Asset, event)
}

// PublishManipulationDetected publishes a positive detector verdict
func (p *Publisher) PublishManipulationDetected(ctx context.Context, res *pricing.ManipulationResult) error {
	event := &ManipulationDetectedEvent{
		EventID:         newEventID(),
		Asset:           res.Asset,
		Pattern:         res.Pattern.String(),
		Risk:            res.Risk.String(),
		ConfidenceScore: res.ConfidenceScore,
		Action:          string(res.Action),
		DetectorsFired:  res.FiredCount(),
		DetectedAt:      res.DetectedAt,
	}

	return p.publish(ctx, kafka.TopicManipulationDetected, res.Asset, event)
}

// PublishCircuitBreaker publishes a breaker state transition
func (p *Publisher) PublishCircuitBreaker(ctx context.Context, asset, state, reason, actor string) error {
	event := &CircuitBreakerEvent{
		EventID:   newEventID(),
		Asset:     asset,
		State:     state,
		Reason:    reason,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}

	topic := kafka.TopicCircuitBreaker
	if state == "emergency_on" || state == "emergency_off" {
		topic = kafka.TopicEmergencyMode
	}

	return p.publish(ctx, topic, asset, event)
}

// PublishPositionTransition publishes a position status change
func (p *Publisher) PublishPositionTransition(ctx context.Context, pos *position.Position, from position.Status, ltvBps decimal.Decimal) error {
	event := &PositionTransitionEvent{
		EventID:    newEventID(),
		PositionID: pos.ID,
		FromStatus: from.String(),
		ToStatus:   pos.Status.String(),
		LTVBps:     ltvBps,
		Timestamp:  time.Now().UTC(),
	}

	return p.publish(ctx, kafka.TopicPositionRisk, pos.ID.String(), event)
}

// PublishLiquidationRound publishes the audit record of an executed round
// together with its penalty distribution
func (p *Publisher) PublishLiquidationRound(ctx context.Context, res *position.LiquidationRoundResult) error {
	event := &LiquidationRoundEvent{
		EventID:              newEventID(),
		PositionID:           res.PositionID,
		Round:                res.Round,
		CollateralLiquidated: res.CollateralLiquidated,
		DebtRepaid:           res.DebtRepaid,
		PenaltyCollected:     res.PenaltyCollected,
		LTVBeforeBps:         res.LTVBeforeBps,
		LTVAfterBps:          res.LTVAfterBps,
		FullyLiquidated:      res.FullyLiquidated,
		Timestamp:            res.ExecutedAt,
	}

	if err := p.publish(ctx, kafka.TopicLiquidationRound, res.PositionID.String(), event); err != nil {
		return err
	}

	dist := &PenaltyDistributedEvent{
		EventID:            newEventID(),
		PositionID:         res.PositionID,
		Round:              res.Round,
		LiquidatorShare:    res.Distribution.LiquidatorShare,
		InsuranceShare:     res.Distribution.InsuranceShare,
		ProtocolShare:      res.Distribution.PlatformShare,
		BorrowerProtection: res.Distribution.BorrowerProtectionShare,
		Timestamp:          res.ExecutedAt,
	}

	return p.publish(ctx, kafka.TopicPenaltyDistributed, res.PositionID.String(), dist)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Error("Failed to publish event",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return err
	}
	return nil
}
