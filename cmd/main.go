package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"citadel/internal/adapters/config"
	"citadel/internal/adapters/vaultdev"
	"citadel/internal/bootstrap"
	"citadel/internal/metrics"
	"citadel/internal/oracle"
	"citadel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// The custody vault and feed transport are external collaborators;
	// until they are wired this binary runs with development stand-ins.
	vlt, err := vaultdev.New(decimal.NewFromInt(1))
	if err != nil {
		log.Fatalf("Failed to create vault: %v", err)
	}
	source := oracle.NewStaticSource()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Vault:         vlt,
		PrimarySource: source,
	})
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Serve(cfg.Metrics.Addr)
		log.Info("Metrics server started", "addr", cfg.Metrics.Addr)
	}

	if err := container.Scheduler.Start(container.Context); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	log.Info("System initialized successfully")

	waitForShutdown(container, log)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then runs coordinated cleanup
func waitForShutdown(container *bootstrap.Container, log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Infof("Received signal %s, shutting down...", sig)

	container.Shutdown()
	log.Info("Shutdown complete")
}
