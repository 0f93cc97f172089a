package kafka

// Topic definitions for Kafka event streaming
const (
	// Oracle events
	TopicPriceValidated       = "oracle.price_validated"
	TopicPriceRejected        = "oracle.price_rejected"
	TopicManipulationDetected = "oracle.manipulation_detected"

	// Risk events
	TopicCircuitBreaker = "risk.circuit_breaker"
	TopicEmergencyMode  = "risk.emergency_mode"
	TopicPositionRisk   = "risk.position_transitions"

	// Liquidation events
	TopicLiquidationRound   = "liquidations.rounds"
	TopicPenaltyDistributed = "liquidations.penalties"
)
