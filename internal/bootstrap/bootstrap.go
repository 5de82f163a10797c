package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/gallery-curator/internal/config"
	"github.com/kirillkom/gallery-curator/internal/core/domain"
	"github.com/kirillkom/gallery-curator/internal/core/ports"
	"github.com/kirillkom/gallery-curator/internal/core/usecase"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/queue/nats"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/resilience"
	"github.com/kirillkom/gallery-curator/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.AnalysisRepository
	SearchUC ports.Searcher
	AgentUC  ports.AgentAnswerer
	IngestUC ports.AnalysisIngestor
	IndexUC  ports.AnalysisIndexer

	searchObserverHook func(usecase.SearchObserver)

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAnalysisRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).
		WithResilience(executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	planner := ollama.NewPlanner(ollamaClient)

	store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection).WithResilience(executor)

	lexical := usecase.NewLexicalRetriever(store)
	semantic := usecase.NewSemanticRetriever(embedder, store)

	retrieverTimeout := time.Duration(cfg.RetrieverTimeoutMillis) * time.Millisecond
	hybridUC := usecase.NewHybridSearchUseCase(lexical, semantic, retrieverTimeout)

	searchUC := &configuredSearcher{cfg: cfg, inner: hybridUC}

	agentUC := usecase.NewAgentSearchUseCase(searchUC, planner, domain.AgentLimits{
		MaxIterations:  cfg.AgentMaxIterations,
		Timeout:        time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		PlannerTimeout: time.Duration(cfg.AgentPlannerTimeoutSecs) * time.Second,
		SearchTimeout:  time.Duration(cfg.AgentSearchTimeoutSecs) * time.Second,
	})

	ingestUC := usecase.NewIngestAnalysisUseCase(repo, store, queue)
	indexUC := usecase.NewIndexAnalysisUseCase(repo, embedder, store)

	return &App{
		Config: cfg,

		Queue:    queue,
		Repo:     repo,
		SearchUC: searchUC,
		AgentUC:  agentUC,
		IngestUC: ingestUC,
		IndexUC:  indexUC,

		searchObserverHook: func(observer usecase.SearchObserver) {
			hybridUC.WithObserver(observer)
		},

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// SetSearchObserver plugs process metrics into the hybrid search use case.
func (a *App) SetSearchObserver(observer usecase.SearchObserver) {
	if a.searchObserverHook != nil {
		a.searchObserverHook(observer)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// configuredSearcher fills zero-valued request knobs from deployment config
// before the core applies its own built-in defaults.
type configuredSearcher struct {
	cfg   config.Config
	inner ports.Searcher
}

func (s *configuredSearcher) Search(ctx context.Context, req domain.SearchRequest) ([]domain.FusedResult, error) {
	if req.TopK == 0 {
		req.TopK = s.cfg.SearchTopK
	}
	if req.LexicalTopK <= 0 {
		req.LexicalTopK = s.cfg.SearchLexicalTopK
	}
	if req.VectorTopK <= 0 {
		req.VectorTopK = s.cfg.SearchVectorTopK
	}
	if req.LexicalWeight <= 0 {
		req.LexicalWeight = s.cfg.SearchLexicalWeight
	}
	if req.SemanticWeight <= 0 {
		req.SemanticWeight = s.cfg.SearchSemanticWeight
	}
	if req.RRFConstant <= 0 {
		req.RRFConstant = s.cfg.SearchRRFConstant
	}
	return s.inner.Search(ctx, req)
}
