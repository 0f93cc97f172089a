package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"citadel/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Oracle        OracleConfig
	Risk          RiskConfig
	Liquidation   LiquidationConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"citadel"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"citadel"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"citadel"`
}

type OracleConfig struct {
	MinValidScore   int           `envconfig:"ORACLE_MIN_VALID_SCORE" default:"70"`
	DefaultMaxStale time.Duration `envconfig:"ORACLE_DEFAULT_MAX_STALENESS" default:"60s"`
	CacheTTL        time.Duration `envconfig:"ORACLE_CACHE_TTL" default:"30s"`
	PrimaryEndpoint string        `envconfig:"ORACLE_PRIMARY_ENDPOINT"`
	FallbackEnabled bool          `envconfig:"ORACLE_FALLBACK_ENABLED" default:"true"`
}

type RiskConfig struct {
	RecoveryWindow     time.Duration `envconfig:"RISK_RECOVERY_WINDOW" default:"1h"`
	UserBonusEnabled   bool          `envconfig:"RISK_USER_BONUS_ENABLED" default:"true"`
	EmergencyOnStartup bool          `envconfig:"RISK_EMERGENCY_ON_STARTUP" default:"false"`
}

type LiquidationConfig struct {
	AbsoluteMaxRounds    int           `envconfig:"LIQUIDATION_ABSOLUTE_MAX_ROUNDS" default:"10"`
	MinLTVImprovementBps int           `envconfig:"LIQUIDATION_MIN_LTV_IMPROVEMENT_BPS" default:"50"`
	RoundTimeout         time.Duration `envconfig:"LIQUIDATION_ROUND_TIMEOUT" default:"30s"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9100"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	// Risk monitor rescans positions and flips risk status
	RiskMonitorInterval time.Duration `envconfig:"WORKER_RISK_MONITOR_INTERVAL" default:"30s"`

	// Oracle poller refreshes validated prices for configured feeds
	OraclePollerInterval time.Duration `envconfig:"WORKER_ORACLE_POLLER_INTERVAL" default:"15s"`

	// Breaker recovery worker attempts auto-recovery of tripped assets
	BreakerRecoveryInterval time.Duration `envconfig:"WORKER_BREAKER_RECOVERY_INTERVAL" default:"5m"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
