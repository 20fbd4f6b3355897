package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/ports"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/usecase"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/cache"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/vector/qdrant"
)

// ReadinessCheck pings one outbound dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type App struct {
	Config config.Config

	SearchUC *usecase.EvidenceSearchUseCase
	Embedder ports.Embedder
	// Index is set only for the Qdrant backend; corpus seeding writes to it.
	Index  *qdrant.EvidenceIndex
	Checks []ReadinessCheck

	closeFn func()
}

// breakerGauge is implemented by the metrics sinks of both binaries.
type breakerGauge interface {
	SetBreakerOpen(operation string, open bool)
}

// New wires the evidence pipeline. observer may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer ports.SearchObserver) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedCfg := resilience.EmbeddingConfig()
	embedCfg.RetryMaxAttempts = cfg.EmbedRetryAttempts
	embedCfg.RetryInitialBackoff = cfg.EmbedRetryBackoff
	embedCfg.BreakerEnabled = cfg.EmbedBreakerEnabled
	embedCfg.Logger = logger
	if gauge, ok := observer.(breakerGauge); ok {
		embedCfg.OnBreakerChange = gauge.SetBreakerOpen
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		EmbedRPS:   cfg.OllamaEmbedRPS,
		EmbedBurst: cfg.OllamaEmbedBurst,
		Timeout:    cfg.OllamaTimeout,
		Executor:   resilience.NewExecutor(embedCfg),
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	embeddingCache := cache.NewEmbeddingCache(cfg.EmbedCacheSize, cache.WithTTL(cfg.EmbedCacheTTL))

	app := &App{
		Config:   cfg,
		Embedder: embedder,
		Checks:   []ReadinessCheck{{Name: "ollama", Check: ollamaClient.Ping}},
	}

	var (
		backend ports.RetrievalBackend
		db      *sql.DB
	)
	switch cfg.RetrievalBackend {
	case config.BackendPostgres:
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo, err := postgres.NewEvidenceRepository(db, cfg.PostgresSearchFunction, postgres.WithLogger(logger))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init evidence repository: %w", err)
		}
		backend = repo
		app.Checks = append(app.Checks, ReadinessCheck{Name: "postgres", Check: repo.Ping})
	case config.BackendQdrant:
		index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithRRFK(cfg.RRFK))
		backend = index
		app.Index = index
		app.Checks = append(app.Checks, ReadinessCheck{Name: "qdrant", Check: index.Ping})
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", cfg.RetrievalBackend)
	}

	reranker, err := NewReranker(cfg.Rerank)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	settings := usecase.DefaultSearchSettings()
	settings.DefaultMaxResults = cfg.MaxResultsDefault
	settings.MaxResultsLimit = cfg.MaxResultsLimit
	settings.CandidateMultiplier = cfg.CandidateMultiplier
	settings.Timeout = cfg.SearchTimeout
	settings.SemanticWeight = cfg.SemanticWeight
	settings.FullTextWeight = cfg.FullTextWeight
	settings.RecencyWeight = cfg.RecencyWeight
	settings.EvidenceBoost = cfg.EvidenceBoost
	settings.FilterByMeSH = cfg.FilterByMeSH
	settings.RerankEnabled = cfg.Rerank.Enabled
	settings.MinContextualScore = cfg.Rerank.MinScore

	retriever := usecase.NewHybridRetriever(embedder, embeddingCache, backend)
	app.SearchUC = usecase.NewEvidenceSearchUseCase(retriever, reranker, settings, logger, observer)

	logger.Info("evidence_pipeline_ready",
		"backend", cfg.RetrievalBackend,
		"embed_model", cfg.OllamaEmbedModel,
		"rerank_enabled", cfg.Rerank.Enabled,
		"rerank_min_score", cfg.Rerank.MinScore,
		"embed_cache_size", cfg.EmbedCacheSize,
	)

	for _, check := range app.Checks {
		if err := check.Check(ctx); err != nil {
			logger.Warn("dependency_unready", "dependency", check.Name, "error", err)
		}
	}

	app.closeFn = func() {
		if db != nil {
			_ = db.Close()
		}
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
