package bootstrap

import (
	"context"

	chclient "citadel/internal/adapters/clickhouse"
	"citadel/internal/adapters/config"
	"citadel/internal/adapters/errors/noop"
	"citadel/internal/adapters/errors/sentry"
	"citadel/internal/adapters/kafka"
	pgclient "citadel/internal/adapters/postgres"
	redisclient "citadel/internal/adapters/redis"
	"citadel/internal/domain/position"
	"citadel/internal/domain/pricing"
	"citadel/internal/domain/vault"
	"citadel/internal/events"
	"citadel/internal/liquidation"
	"citadel/internal/metrics"
	"citadel/internal/oracle"
	chrepo "citadel/internal/repository/clickhouse"
	pgrepo "citadel/internal/repository/postgres"
	redisrepo "citadel/internal/repository/redis"
	"citadel/internal/risk"
	lendingservice "citadel/internal/services/lending"
	"citadel/internal/workers"
	"citadel/pkg/errors"
	"citadel/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure
	PG       *pgclient.Client
	CH       *chclient.Client
	Redis    *redisclient.Client
	Producer *kafka.Producer

	// Repositories
	Positions   position.Repository
	Rounds      position.RoundRepository
	PricePoints pricing.Repository
	PriceCache  pricing.Cache

	// Domain components
	FeedRegistry *oracle.FeedRegistry
	Oracle       *oracle.Service
	Breaker      *risk.CircuitBreaker
	Engine       *risk.Engine
	Authorizer   *risk.RoleACL
	Pools        *lendingservice.PoolRegistry
	Lending      *lendingservice.Service
	Executor     *liquidation.Executor
	Controller   *liquidation.Controller
	Publisher    *events.Publisher

	// Background processing
	Scheduler *workers.Scheduler

	Context context.Context
	Cancel  context.CancelFunc
}

// Options carries the collaborators that live outside this module
type Options struct {
	Vault          vault.Vault
	PrimarySource  pricing.Source
	FallbackSource pricing.Source
}

// New builds the full dependency graph from configuration
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	log := logger.Get()

	tracker, err := newTracker(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init error tracker")
	}
	logger.SetErrorTracker(tracker)

	pg, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "init postgres")
	}

	ch, err := chclient.NewClient(cfg.ClickHouse)
	if err != nil {
		return nil, errors.Wrap(err, "init clickhouse")
	}

	rds, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "init redis")
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})

	metrics.Register()

	// Repositories
	positions := pgrepo.NewPositionRepository(pg.DB())
	rounds := pgrepo.NewLiquidationRoundRepository(pg.DB())
	pricePoints := chrepo.NewPricePointRepository(ch)
	priceCache := redisrepo.NewPriceCache(rds.Client(), cfg.Oracle.CacheTTL)

	// Domain components
	publisher := events.NewPublisher(producer, log)
	authorizer := risk.NewRoleACL()
	breaker := risk.NewCircuitBreaker(cfg.Risk.RecoveryWindow, rds, authorizer, publisher, log)
	engine := risk.NewEngine(opts.Vault, log)
	registry := oracle.NewFeedRegistry()

	oracleSvc := oracle.NewService(
		opts.PrimarySource, opts.FallbackSource,
		registry,
		oracle.NewValidator(cfg.Oracle.MinValidScore),
		oracle.NewDetector(),
		breaker,
		pricePoints,
		priceCache,
		publisher,
		authorizer,
		log,
	)

	pools := lendingservice.NewPoolRegistry()
	lending := lendingservice.NewService(positions, opts.Vault, engine, pools, log)

	recorder := liquidation.NewRepositoryRecorder(positions, rounds)
	planner := liquidation.NewPlanner(log)
	executor := liquidation.NewExecutor(engine, planner, breaker, opts.Vault, recorder, publisher, log)
	controller := liquidation.NewController(executor, engine, log)

	// Background workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewRiskMonitorWorker(
		cfg.Workers.RiskMonitorInterval,
		positions, pools, engine, oracleSvc, priceCache, publisher,
	))
	scheduler.RegisterWorker(workers.NewOraclePollerWorker(
		cfg.Workers.OraclePollerInterval, oracleSvc, registry,
	))
	scheduler.RegisterWorker(workers.NewBreakerRecoveryWorker(
		cfg.Workers.BreakerRecoveryInterval, breaker, priceCache,
	))

	appCtx, cancel := context.WithCancel(ctx)

	return &Container{
		Config:       cfg,
		Log:          log,
		ErrorTracker: tracker,
		PG:           pg,
		CH:           ch,
		Redis:        rds,
		Producer:     producer,
		Positions:    positions,
		Rounds:       rounds,
		PricePoints:  pricePoints,
		PriceCache:   priceCache,
		FeedRegistry: registry,
		Oracle:       oracleSvc,
		Breaker:      breaker,
		Engine:       engine,
		Authorizer:   authorizer,
		Pools:        pools,
		Lending:      lending,
		Executor:     executor,
		Controller:   controller,
		Publisher:    publisher,
		Scheduler:    scheduler,
		Context:      appCtx,
		Cancel:       cancel,
	}, nil
}

// newTracker selects the error tracking backend from configuration
func newTracker(cfg *config.Config) (errors.Tracker, error) {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return noop.New(), nil
	}
	return sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
}
