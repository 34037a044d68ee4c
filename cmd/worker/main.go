// The worker binary consumes queued extraction jobs from Kafka, runs the
// pipeline and persists results to the configured backends.  Jobs that
// exhaust their retries land on the dead-letter topic.
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
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		fmt.Fprintln(os.Stderr, "worker requires kafka brokers to be configured")
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := prometheus.NewPipelineMetrics(cfg.Metrics.Namespace)
	backends := bootstrap.Connect(ctx, cfg, logger)
	defer backends.Close(logger)

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

	producer := kafka.NewProducer(cfg.Kafka, "worker", logger)

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

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Worker,
		[]string{kafka.TopicExtractionRequested}, producer, logger)
	consumer.RegisterHandler("extraction.requested", service.JobHandler())

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("consumer start failed", logging.Err(err))
	}
	logger.Info("worker consuming extraction jobs")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop failed", logging.Err(err))
	}
	if err := producer.Close(); err != nil {
		logger.Error("producer close failed", logging.Err(err))
	}
	logger.Info("worker stopped", logging.Int64("jobs_processed", consumer.Processed()))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
