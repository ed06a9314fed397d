// Command neuroleaf runs the tomato-disease assistant: it indexes the
// disease corpus, wires the conversational orchestrator, and serves the
// HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/neuroleaf/neuroleaf/config"
	openaiembedder "github.com/neuroleaf/neuroleaf/contrib/embedder/openai"
	claudeprovider "github.com/neuroleaf/neuroleaf/contrib/provider/claude"
	openaiprovider "github.com/neuroleaf/neuroleaf/contrib/provider/openai"
	"github.com/neuroleaf/neuroleaf/contrib/vector/inmemory"
	"github.com/neuroleaf/neuroleaf/contrib/vector/pg"
	"github.com/neuroleaf/neuroleaf/detection"
	detectionstore "github.com/neuroleaf/neuroleaf/detection/store"
	"github.com/neuroleaf/neuroleaf/knowledge"
	"github.com/neuroleaf/neuroleaf/llm"
	"github.com/neuroleaf/neuroleaf/orchestrator"
	"github.com/neuroleaf/neuroleaf/pkg/logging"
	"github.com/neuroleaf/neuroleaf/pkg/telemetry"
	"github.com/neuroleaf/neuroleaf/server"
	"github.com/neuroleaf/neuroleaf/session"
	sessionstore "github.com/neuroleaf/neuroleaf/session/store"
	"github.com/neuroleaf/neuroleaf/vector"
	"github.com/neuroleaf/neuroleaf/websearch"

	openaisdk "github.com/openai/openai-go/v3"
)

func main() {
	logger := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "neuroleaf"})
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	// Generation provider
	var client llm.Client
	switch cfg.LLMProvider {
	case "claude":
		claudeCfg := claudeprovider.DefaultConfig(cfg.LLMAPIKey, cfg.LLMBaseURL)
		claudeCfg.Model = cfg.LLMModel
		claudeCfg.MaxTokens = cfg.LLMMaxTokens
		claudeCfg.Temperature = cfg.LLMTemperature
		client = claudeprovider.New(claudeCfg)
	default:
		client = openaiprovider.New(&openaiprovider.Config{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
	}

	// Corpus store and embedder
	var corpusStore vector.VectorStore
	switch cfg.CorpusBackend {
	case "postgres":
		pgStore, err := pg.NewPGVectorStore(&pg.PGVectorConfig{
			Host:      cfg.PGHost,
			Port:      cfg.PGPort,
			User:      cfg.PGUser,
			Password:  cfg.PGPassword,
			DBName:    cfg.PGDatabase,
			SSLMode:   cfg.PGSSLMode,
			Dimension: cfg.EmbeddingDimension,
			TableName: "disease_passages",
		})
		if err != nil {
			logger.Error("failed to open pgvector store", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		corpusStore = pgStore
	default:
		corpusStore = inmemory.NewInMemoryVectorStore()
	}

	embedder := openaiembedder.New(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL,
		openaisdk.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbeddingDimension)

	kb := knowledge.New(corpusStore, embedder, knowledge.WithTopK(cfg.RetrievalTopK))
	if count, err := kb.Count(ctx); err == nil && count > 0 {
		logger.Info("corpus already indexed", "passages", count)
	} else if err := kb.LoadDir(ctx, cfg.CorpusDir); err != nil {
		logger.Error("failed to index corpus", "dir", cfg.CorpusDir, "error", err)
		os.Exit(1)
	}

	// Web search
	searcher := websearch.NewTavilyClient(cfg.TavilyAPIKey,
		websearch.WithMaxResults(cfg.WebMaxResults),
		websearch.WithTimeout(cfg.SearchTimeout))

	orch, err := orchestrator.New(client, kb, searcher,
		orchestrator.WithDefaultRoute(orchestrator.Route(cfg.DefaultRoute)),
		orchestrator.WithCallTimeout(cfg.GenerateTimeout))
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	// Sessions
	var store session.Store
	switch cfg.SessionBackend {
	case "redis":
		store = sessionstore.NewRedisStore(&sessionstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		store = sessionstore.NewMemoryStore()
	}
	sessions := session.NewManager(store,
		session.WithMaxHistoryTokens(cfg.MaxHistoryTokens))

	// Detection collaborator and report archive
	var detector detection.Detector
	if cfg.VisionEndpoint != "" {
		detector = detection.NewHTTPDetector(cfg.VisionEndpoint)
	}
	var archive detectionstore.Archive
	if cfg.MongoURI != "" {
		mongoArchive, err := detectionstore.NewMongoArchive(&detectionstore.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			logger.Error("failed to open report archive", "error", err)
			os.Exit(1)
		}
		defer mongoArchive.Close(context.Background())
		archive = mongoArchive
	} else {
		archive = detectionstore.NewInMemoryArchive()
	}

	srv, err := server.New(server.Config{
		Addr:     cfg.ListenAddr,
		Turns:    orch,
		Sessions: sessions,
		Detector: detector,
		Archive:  archive,
	})
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.Run(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
