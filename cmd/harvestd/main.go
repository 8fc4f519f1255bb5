// Package main is the harvestd entry point: a multi-tenant content ingestion
// daemon that scrapes web pages, enriches them with an LLM using retrieved
// context, and persists the results to MongoDB and Qdrant.
//
// Usage:
//
//	HARVESTD_MODEL_BASE_URL=http://localhost:9000/v1 \
//	HARVESTD_MODEL_MODEL=gpt-4o-mini \
//	./harvestd -config ~/.config/harvestd/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/harvestd/internal/config"
	"github.com/fyrsmithlabs/harvestd/internal/docstore"
	"github.com/fyrsmithlabs/harvestd/internal/embeddings"
	"github.com/fyrsmithlabs/harvestd/internal/httpapi"
	"github.com/fyrsmithlabs/harvestd/internal/llm"
	"github.com/fyrsmithlabs/harvestd/internal/logging"
	"github.com/fyrsmithlabs/harvestd/internal/pipeline"
	"github.com/fyrsmithlabs/harvestd/internal/scrape"
	"github.com/fyrsmithlabs/harvestd/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default ~/.config/harvestd/config.yaml)")
	flag.Parse()

	// Root context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "harvestd starting",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("collection", cfg.Qdrant.Collection),
	)

	// Document store
	docs, err := docstore.Open(ctx, docstore.Config{
		URI:        cfg.Mongo.URI.Value(),
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer func() { _ = docs.Close(context.Background()) }()

	// Vector store
	vectors, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey.Value(),
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to vector store: %w", err)
	}
	defer func() { _ = vectors.Close() }()

	if err := vectors.EnsureCollection(ctx, cfg.Qdrant.Collection, cfg.Qdrant.VectorSize); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	// Embeddings
	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}

	// Language model
	model, err := llm.NewInvoker(llm.Config{
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		APIKey:  cfg.Model.APIKey.Value(),
		Timeout: cfg.Model.Timeout.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating model invoker: %w", err)
	}

	fetcher := scrape.NewFetcher(scrape.Config{
		Timeout:   cfg.Fetch.Timeout.Duration(),
		UserAgent: cfg.Fetch.UserAgent,
	}, logger)

	svc := pipeline.NewService(fetcher, embedder, model, docs, vectors, pipeline.Config{
		Collection:   cfg.Qdrant.Collection,
		TextLimit:    cfg.Pipeline.TextLimit,
		HeadingLimit: cfg.Pipeline.HeadingLimit,
		ContextK:     cfg.Pipeline.ContextK,
	}, logger)

	server, err := httpapi.NewServer(svc, docs, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown error", zap.Error(err))
		return err
	}

	logger.Info(ctx, "harvestd stopped gracefully")
	return nil
}
