package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceValidatedEvent is emitted for every oracle read, accepted or not
type PriceValidatedEvent struct {
	EventID          string          `json:"event_id"`
	Asset            string          `json:"asset"`
	Price            decimal.Decimal `json:"price"`
	Confidence       decimal.Decimal `json:"confidence"`
	ValidationScore  int             `json:"validation_score"`
	IsValid          bool            `json:"is_valid"`
	ManipulationRisk string          `json:"manipulation_risk"`
	Source           string          `json:"source"`
	Timestamp        time.Time       `json:"timestamp"`
}

// ManipulationDetectedEvent is emitted when at least one detector fires
type ManipulationDetectedEvent struct {
	EventID         string    `json:"event_id"`
	Asset           string    `json:"asset"`
	Pattern         string    `json:"pattern"`
	Risk            string    `json:"risk"`
	ConfidenceScore int       `json:"confidence_score"`
	Action          string    `json:"action"`
	DetectorsFired  int       `json:"detectors_fired"`
	DetectedAt      time.Time `json:"detected_at"`
}

// CircuitBreakerEvent covers trips, recoveries and emergency transitions
type CircuitBreakerEvent struct {
	EventID   string    `json:"event_id"`
	Asset     string    `json:"asset,omitempty"`
	State     string    `json:"state"` // tripped, recovered, emergency_on, emergency_off
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionTransitionEvent records a position status change
type PositionTransitionEvent struct {
	EventID    string          `json:"event_id"`
	PositionID uuid.UUID       `json:"position_id"`
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	LTVBps     decimal.Decimal `json:"ltv_bps"`
	Timestamp  time.Time       `json:"timestamp"`
}

// LiquidationRoundEvent is the audit record of one executed round
type LiquidationRoundEvent struct {
	EventID              string          `json:"event_id"`
	PositionID           uuid.UUID       `json:"position_id"`
	Round                int             `json:"round"`
	CollateralLiquidated decimal.Decimal `json:"collateral_liquidated"`
	DebtRepaid           decimal.Decimal `json:"debt_repaid"`
	PenaltyCollected     decimal.Decimal `json:"penalty_collected"`
	LTVBeforeBps         decimal.Decimal `json:"ltv_before_bps"`
	LTVAfterBps          decimal.Decimal `json:"ltv_after_bps"`
	FullyLiquidated      bool            `json:"fully_liquidated"`
	Timestamp            time.Time       `json:"timestamp"`
}

// PenaltyDistributedEvent records the four-way penalty split of a round
type PenaltyDistributedEvent struct {
	EventID            string          `json:"event_id"`
	PositionID         uuid.UUID       `json:"position_id"`
	Round              int             `json:"round"`
	LiquidatorShare    decimal.Decimal `json:"liquidator_share"`
	InsuranceShare     decimal.Decimal `json:"insurance_share"`
	ProtocolShare      decimal.Decimal `json:"protocol_share"`
	BorrowerProtection decimal.Decimal `json:"borrower_protection"`
	Timestamp          time.Time       `json:"timestamp"`
}

// newEventID generates a unique event ID
func newEventID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
