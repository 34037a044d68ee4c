// The apiserver binary serves the extraction HTTP API.  Every infrastructure
// backend is optional: a backend that cannot be reached at startup is logged
// and skipped, and the corresponding feature degrades instead of blocking
// extraction itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/NeuroChart-Intelligence/internal/application/extraction"
	"github.com/turtacn/NeuroChart-Intelligence/internal/bootstrap"
	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/llm"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/session"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/NeuroChart-Intelligence/internal/interfaces/http"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("apiserver")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := prometheus.NewPipelineMetrics(cfg.Metrics.Namespace)
	backends := bootstrap.Connect(ctx, cfg, logger)
	defer backends.Close(logger)

	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(cfg.Kafka, "apiserver", logger)
		defer producer.Close()
	}

	var extractor llm.Extractor
	if cfg.Pipeline.LLM.Enabled {
		extractor, err = llm.NewHTTPExtractor(llm.Config{
			BaseURL:    cfg.Pipeline.LLM.BaseURL,
			APIKey:     cfg.Pipeline.LLM.APIKey,
			Model:      cfg.Pipeline.LLM.Model,
			Timeout:    cfg.Pipeline.LLM.Timeout,
			MaxRetries: cfg.Pipeline.LLM.MaxRetries,
		}, logger)
		if err != nil {
			logger.Fatal("external extractor configuration is invalid", logging.Err(err))
		}
	}

	service, err := extraction.NewService(extraction.Dependencies{
		Pipeline: session.NewPipeline(cfg.Pipeline, extractor, logger),
		Cache:    backends.Cache,
		Sessions: backends.Sessions,
		Graph:    backends.Graph,
		Archive:  backends.Archive,
		Indexer:  backends.Indexer,
		Producer: producer,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("service construction failed", logging.Err(err))
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Service:  service,
		Metrics:  metrics,
		Checkers: backends.Checkers(),
		Version:  version,
		Mode:     cfg.Server.Mode,
		Logger:   logger,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", logging.Err(err))
		}
	}

	if err := server.Stop(context.Background()); err != nil {
		logger.Error("shutdown incomplete", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("apiserver stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
