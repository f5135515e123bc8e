package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alisaviation/mqtt-bridge/internal/bridge"
	"github.com/alisaviation/mqtt-bridge/internal/broker"
	"github.com/alisaviation/mqtt-bridge/internal/config"
	"github.com/alisaviation/mqtt-bridge/internal/helpers"
	"github.com/alisaviation/mqtt-bridge/internal/logger"
	"github.com/alisaviation/mqtt-bridge/internal/metrics"
)

// Build variables - set by ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "optional YAML config file; environment variables take precedence")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("mqtt-bridge %s (%s)\n", version, commit)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogEncoding); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, bridge.ErrDestinationUnavailable) {
			logger.Log.Fatal("Cannot start without a destination broker", zap.Error(err))
		}
		logger.Log.Fatal("Bridge stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	registry := metrics.NewRegistry()
	server := metrics.NewServer(helpers.ListenAddr(cfg.MetricsPort), registry)
	if err := server.Start(); err != nil {
		return err
	}
	logger.Log.Info("Metrics endpoint listening", zap.String("addr", server.Addr()))

	destination := broker.NewClient(broker.OptionsFromConfig(cfg, cfg.Destination()))
	b := bridge.New(bridge.Settings{
		SourceTopic:      cfg.SourceTopic,
		DestinationTopic: cfg.DestinationTopic,
		RetryDelay:       cfg.RetryDelay,
	}, destination, registry)

	sourceOpts := broker.OptionsFromConfig(cfg, cfg.Source())
	sourceOpts.OnConnect = b.OnSourceConnected
	source := broker.NewClient(sourceOpts)

	logger.Log.Info("Starting bridge",
		zap.String("source", helpers.BrokerURL(cfg.SourceHost, cfg.SourcePort)),
		zap.String("source_topic", cfg.SourceTopic),
		zap.String("destination", helpers.BrokerURL(cfg.DestinationHost, cfg.DestinationPort)),
		zap.String("destination_topic", cfg.DestinationTopic),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx, source)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
