package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Oracle metrics
	PriceValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_price_validations_total",
			Help: "Total number of price validations",
		},
		[]string{"asset", "result"}, // result: valid|invalid
	)

	ValidationScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citadel_price_validation_score",
			Help: "Latest validation score per asset (0-100)",
		},
		[]string{"asset"},
	)

	ManipulationDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_manipulation_detections_total",
			Help: "Total number of manipulation detections",
		},
		[]string{"asset", "pattern", "risk"},
	)

	OracleReadLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citadel_oracle_read_latency_seconds",
			Help:    "Raw oracle read latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"asset"},
	)

	// Circuit breaker metrics
	CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_circuit_breaker_trips_total",
			Help: "Total number of per-asset circuit breaker trips",
		},
		[]string{"asset", "reason"},
	)

	EmergencyMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "citadel_emergency_mode",
			Help: "Global emergency flag (1 = active)",
		},
	)

	// Risk metrics
	PositionLTV = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citadel_position_ltv_bps",
			Help: "Latest computed LTV per position in basis points",
		},
		[]string{"position_id"},
	)

	PositionsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citadel_positions_count",
			Help: "Number of positions per status",
		},
		[]string{"status"},
	)

	// Liquidation metrics
	LiquidationRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_liquidation_rounds_total",
			Help: "Total number of executed liquidation rounds",
		},
		[]string{"asset", "outcome"}, // outcome: partial|full|recovered
	)

	CollateralLiquidated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_collateral_liquidated_total",
			Help: "Total collateral shares liquidated",
		},
		[]string{"asset"},
	)

	PenaltyCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_penalty_collected_total",
			Help: "Total penalty value collected",
		},
		[]string{"asset"},
	)

	LiquidationRoundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citadel_liquidation_round_duration_seconds",
			Help:    "Single liquidation round duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"asset"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citadel_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citadel_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		PriceValidations,
		ValidationScore,
		ManipulationDetections,
		OracleReadLatency,
		CircuitBreakerTrips,
		EmergencyMode,
		PositionLTV,
		PositionsByStatus,
		LiquidationRounds,
		CollateralLiquidated,
		PenaltyCollected,
		LiquidationRoundDuration,
		WorkerExecutions,
		WorkerDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts the metrics HTTP server
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
