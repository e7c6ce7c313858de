// Package main provides the sensor reading simulator, which publishes
// generated readings to the EcoPulse ingestion topic.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/config"
	"github.com/ecopulse/ecopulse/internal/supervisor"
	"github.com/ecopulse/ecopulse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "ecopulse-simulator"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting EcoPulse simulator")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("simulator stopped with error")
	}
	log.Info().Msg("simulator stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
		return errors.New("simulator requires pubsub.project_id and pubsub.topic")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	publisher := worker.NewPubSubPublisher(client, cfg.PubSub.Topic)
	defer publisher.Stop()

	sites := worker.DefaultSites()
	sim := worker.NewSimulator(worker.SimulatorConfig{
		Sites:       sites,
		Interval:    cfg.Simulator.Interval,
		Concurrency: cfg.Simulator.Concurrency,
		Seed:        cfg.Simulator.Seed,
		Publisher:   publisher,
		Logger:      log,
	})

	log.Info().
		Str("topic", cfg.PubSub.Topic).
		Int("sensors", worker.CountSensors(sites)).
		Dur("interval", cfg.Simulator.Interval).
		Msg("publishing simulated readings")

	tree := supervisor.NewTree(serviceName, log, supervisor.TreeConfig{})
	tree.AddIngestion(sim)

	err = tree.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
