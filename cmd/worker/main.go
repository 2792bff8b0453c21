package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fynex/config"
	"fynex/pkg/chunking"
	"fynex/pkg/embedding"
	"fynex/pkg/kafka"
	"fynex/pkg/qdrantdb"
	"fynex/queue"
	"fynex/scraper"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	// =========
	// Config
	// =========
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := zap.NewProduction()
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// =========
	// Embedding + chunking
	// =========
	embedder, err := embedding.New(ctx, embedding.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		TEIURL:     cfg.Embedding.TEIURL,
		Timeout:    cfg.Embedding.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create embedding client", zap.Error(err))
	}
	chunker := chunking.NewRecursiveCharacterChunking(embedder, cfg.Scraper.ChunkSize, cfg.Scraper.ChunkOverlap, logger)

	// =========
	// Qdrant vector
	// =========
	qdb, err := qdrantdb.NewClient(qdrantdb.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		logger.Fatal("failed to initialize qdrant", zap.Error(err))
	}
	defer qdb.Close()
	store := qdrantdb.NewChunkStore(qdb, cfg.Qdrant.Collection, cfg.Embedding.Dimensions,
		qdrantdb.MismatchPolicy(cfg.Qdrant.OnDimensionMismatch), logger)

	// =========
	// Kafka
	// =========
	kc, err := kafka.NewClient(ctx, cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("failed to connect to kafka", zap.Error(err))
	}
	defer kc.Close()
	partitions, err := kc.EnsureTopic(ctx, cfg.Kafka.JobsTopic, cfg.Kafka.Partitions)
	if err != nil {
		logger.Warn("could not ensure jobs topic", zap.Error(err))
	} else if partitions < cfg.Scraper.Workers {
		logger.Warn("jobs topic has fewer partitions than workers, some workers will stay idle",
			zap.String("topic", cfg.Kafka.JobsTopic),
			zap.Int("partitions", partitions),
			zap.Int("workers", cfg.Scraper.Workers))
	}
	if _, err := kc.EnsureTopic(ctx, cfg.Kafka.EventsTopic, 1); err != nil {
		logger.Warn("could not ensure events topic", zap.Error(err))
	}

	sources := make([]scraper.JobSource, 0, cfg.Scraper.Workers)
	for range cfg.Scraper.Workers {
		consumer := queue.NewConsumer(kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.JobsTopic,
			GroupID: cfg.Kafka.ConsumerGroup,
		}, logger))
		defer consumer.Close()
		sources = append(sources, consumer)
	}

	// =========
	// Scraper
	// =========
	fetcher, err := scraper.NewFetcher(scraper.FetcherConfig{
		Timeout:      cfg.Scraper.FetchTimeout,
		UserAgent:    cfg.Scraper.UserAgent,
		ProxyURL:     cfg.Scraper.ProxyURL,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create fetcher", zap.Error(err))
	}

	opts := []scraper.WorkerOption{
		scraper.WithEvents(queue.NewEventPublisher(kc, cfg.Kafka.EventsTopic, logger)),
	}
	if cfg.Scraper.LedgerPath != "" {
		ledger, err := scraper.OpenBoltLedger(cfg.Scraper.LedgerPath)
		if err != nil {
			logger.Fatal("failed to open job ledger", zap.Error(err))
		}
		defer ledger.Close()
		opts = append(opts, scraper.WithLedger(ledger))
	}

	worker := scraper.NewWorker(fetcher, scraper.NewExtractor(cfg.Scraper.Extraction, logger), chunker, store, logger, opts...)

	logger.Info("scraper workers started",
		zap.Int("workers", cfg.Scraper.Workers),
		zap.String("topic", cfg.Kafka.JobsTopic),
		zap.String("group", cfg.Kafka.ConsumerGroup))

	scraper.NewPool(sources, worker, logger).Run(ctx)
	logger.Info("scraper workers stopped")
}
