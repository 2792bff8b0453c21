package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"fynex/api"
	"fynex/broker"
	"fynex/chat"
	"fynex/completion"
	"fynex/config"
	"fynex/pkg/embedding"
	"fynex/pkg/kafka"
	"fynex/pkg/qdrantdb"
	"fynex/query"
	"fynex/queue"
	"fynex/rag"
	"fynex/search"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const expansionVariants = 3

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
	// Completion
	// =========
	llm, err := completion.NewGeminiClient(ctx, completion.GeminiConfig{
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.ChatModel,
		ExpansionModel: cfg.LLM.ExpansionModel,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create completion client", zap.Error(err))
	}

	// =========
	// Embedding Client
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
	if _, err := store.EnsureCollection(ctx, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("failed to prepare collection", zap.Error(err))
	}

	// =========
	// Kafka
	// =========
	kc, err := kafka.NewClient(ctx, cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("failed to connect to kafka", zap.Error(err))
	}
	defer kc.Close()
	if _, err := kc.EnsureTopic(ctx, cfg.Kafka.JobsTopic, cfg.Kafka.Partitions); err != nil {
		logger.Warn("could not ensure jobs topic", zap.Error(err))
	}
	if _, err := kc.EnsureTopic(ctx, cfg.Kafka.EventsTopic, 1); err != nil {
		logger.Warn("could not ensure events topic", zap.Error(err))
	}
	producer := queue.NewProducer(kc, cfg.Kafka.JobsTopic, logger)

	// Every server instance needs every event, so each gets its own group.
	hostname, _ := os.Hostname()
	watcher := queue.NewEventWatcher(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.EventsTopic,
		GroupID:     "fynex-server-" + hostname + "-" + uuid.NewString()[:8],
		StartNewest: true,
	}, logger), cfg.RAG.EventTTL, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("event watcher stopped", zap.Error(err))
		}
	}()

	// =========
	// Research pipeline
	// =========
	searcher := search.NewSerpApiSearchEngine(cfg.Search.SerpAPIKey, cfg.Search.Timeout, logger,
		search.WithRateLimit(cfg.Search.RequestsPerSecond))
	pipeline := rag.NewPipeline(
		query.NewExpander(llm, expansionVariants, logger),
		searcher,
		producer,
		rag.NewPoller(store, cfg.RAG.PollInterval, cfg.RAG.PollMaxAttempts, logger, rag.WithEventLookup(watcher)),
		rag.NewRetriever(embedder, store, rag.RetrieverConfig{
			SearchLimit:  cfg.RAG.SearchLimit,
			PerQueryTopK: cfg.RAG.PerQueryTopK,
			MaxChunks:    cfg.RAG.MaxChunks,
		}, logger),
		rag.PipelineConfig{
			MaxSearchedQueries: cfg.Search.MaxSearchedQueries,
			ResultsPerQuery:    cfg.Search.ResultsPerQuery,
			MaxSnippets:        cfg.RAG.MaxSnippets,
			SearchOptions:      map[string]string{"gl": cfg.Search.Country, "hl": cfg.Search.Language},
		},
		logger,
	)

	// =========
	// Broker
	// =========
	kite := broker.NewKiteClient(cfg.Broker.KiteAPIKey, logger,
		broker.WithBaseURL(cfg.Broker.BaseURL),
		broker.WithRateLimit(cfg.Broker.RequestsPerSecond))
	if cfg.Broker.KiteAPIKey == "" {
		logger.Warn("kite api key not set, portfolio tool will be unavailable")
	}

	// =========
	// HTTP
	// =========
	dispatcher := chat.NewDispatcher(llm, pipeline, kite, cfg.LLM.SystemPrompt, logger)
	srv := api.NewServer(dispatcher, &cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
