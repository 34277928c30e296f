// File: internal/app/providers.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/config"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/handlers"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/logging"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/ratelimit"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository"
	conversationrepo "github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/conversation"
	likelihoodrepo "github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/ai"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/caseindex"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/likelihood"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/live"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/orchestrator"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/pinecone"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/recommender"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/services/roles"
)

// Application aggregates the long-lived components of the server.
type Application struct {
	Config   *config.Config
	Logger   *logging.ZapLogger
	DB       *gorm.DB
	Sessions *services.SessionService
	Limiter  *ratelimit.MemoryRateLimiter
	Router   http.Handler

	closers []func() error
}

// New builds every component from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, logger *logging.ZapLogger) (*Application, error) {
	a := &Application{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	db, err := ProvideDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	aiService, err := ProvideAIService(ctx, cfg, logger.Named("ai"))
	if err != nil {
		return nil, err
	}

	index, closeIndex, err := ProvideCaseIndex(ctx, cfg, aiService, logger.Named("caseindex"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeIndex)

	engine, err := recommender.NewEngine(index, ProvideRecommenderConfig(cfg), logger.Named("recommender"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recommender: %w", err)
	}

	generator, err := ProvideGenerator(cfg, aiService, logger.Named("roles"))
	if err != nil {
		return nil, err
	}

	scorer, err := ProvideScorer(cfg, index, logger.Named("likelihood"))
	if err != nil {
		return nil, err
	}

	cache, closeCache := ProvideLikelihoodCache(cfg)
	a.closers = append(a.closers, closeCache)

	sessions, err := services.NewSessionService(services.SessionDependencies{
		Recommender:   engine,
		Generator:     generator,
		Scorer:        scorer,
		Cache:         cache,
		Conversations: conversationrepo.NewConversationRepository(db, logger.Named("repository")),
		Snapshots:     likelihoodrepo.NewSnapshotRepository(db),
		Logger:        logger.Named("sessions"),
	}, ProvideSessionConfig(cfg), ProvideOrchestratorConfig(cfg), ProvideLiveConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session service: %w", err)
	}
	a.Sessions = sessions

	limiter, err := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultGenerationConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	a.Limiter = limiter
	a.closers = append(a.closers, func() error {
		limiter.Close()
		return nil
	})

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Sessions:  sessions,
		Logger:    logger.Named("http"),
		JWTSecret: []byte(cfg.JWTSecretKey),
		Limiter:   limiter,
	})

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func ProvideLogger(cfg *config.Config) (*logging.ZapLogger, error) {
	return logging.New("interview-assistant", cfg.Environment, cfg.LogLevel)
}

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ProvideAIConfig(cfg *config.Config) *ai.Config {
	c := ai.DefaultConfig()
	c.EmbeddingProvider = strings.ToLower(cfg.EmbeddingProvider)
	c.EmbeddingKey = cfg.EmbeddingKey
	c.EmbeddingBaseURL = cfg.EmbeddingBaseURL
	c.EmbeddingModel = cfg.EmbeddingModel
	c.LLMProvider = strings.ToLower(cfg.LLMProvider)
	c.LLMKey = cfg.LLMKey
	c.LLMBaseURL = cfg.LLMBaseURL
	c.LLMModel = cfg.LLMModel
	c.MaxTokens = cfg.LLMMaxTokens
	c.Temperature = float32(cfg.LLMTemperature)
	c.Timeout = cfg.AITimeout
	return c
}

func ProvideAIService(ctx context.Context, cfg *config.Config, logger ai.Logger) (*ai.Service, error) {
	svc, err := ai.NewServiceFromConfig(ctx, ProvideAIConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI service: %w", err)
	}
	return svc, nil
}

func ProvidePineconeConfig(cfg *config.Config) *pinecone.Config {
	c := pinecone.DefaultConfig()
	c.APIKey = cfg.PineconeAPIKey
	c.IndexHost = cfg.PineconeIndexHost
	if cfg.PineconeNamespace != "" {
		c.Namespace = cfg.PineconeNamespace
	}
	return c
}

// ProvideVectorService connects to the hosted case index.
func ProvideVectorService(cfg *config.Config, logger pinecone.Logger) (*pinecone.VectorService, error) {
	pcConfig := ProvidePineconeConfig(cfg)
	conn, err := pinecone.Connect(pcConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Pinecone: %w", err)
	}
	return pinecone.NewVectorService(conn, pinecone.NewRetryService(pcConfig, logger), pcConfig, logger), nil
}

// ProvideCaseIndex loads the case file and returns the configured backend:
// an in-memory index built from the records, or a Pinecone-backed index that
// resolves hits against them.
func ProvideCaseIndex(ctx context.Context, cfg *config.Config, embedder caseindex.Embedder, logger *logging.ZapLogger) (caseindex.Querier, func() error, error) {
	records, err := caseindex.LoadRecords(cfg.CasesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cases: %w", err)
	}

	if cfg.IndexBackend == "pinecone" {
		vectors, err := ProvideVectorService(cfg, logger.Named("pinecone"))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using remote case index", "cases", len(records))
		return caseindex.NewRemoteIndex(embedder, vectors, records, logger), vectors.Close, nil
	}

	index, err := caseindex.Build(ctx, embedder, records, &caseindex.Config{BuildConcurrency: cfg.IndexBuildWorkers}, logger)
	if err != nil {
		return nil, nil, err
	}
	return index, func() error { return nil }, nil
}

func ProvideRecommenderConfig(cfg *config.Config) *recommender.Config {
	c := recommender.DefaultConfig()
	c.CandidateCases = cfg.RecommenderCandidates
	return c
}

func ProvideGenerator(cfg *config.Config, completer roles.Completer, logger roles.Logger) (*roles.Generator, error) {
	prompts, err := roles.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	g, err := roles.NewGenerator(completer, prompts, roles.DefaultConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize role generator: %w", err)
	}
	return g, nil
}

func ProvideScorer(cfg *config.Config, index caseindex.Querier, logger likelihood.Logger) (*likelihood.Scorer, error) {
	vocab, err := likelihood.LoadVocabulary(cfg.SymptomVocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load symptom vocabulary: %w", err)
	}
	if vocab.Len() == 0 {
		logger.Warn("symptom vocabulary is empty; symptom counts will be empty")
	}
	lc := likelihood.DefaultConfig()
	lc.TopK = cfg.LikelihoodTopK
	s, err := likelihood.NewScorer(index, vocab, lc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize likelihood scorer: %w", err)
	}
	return s, nil
}

// ProvideLikelihoodCache returns a Redis cache when REDIS_ADDR is set and an
// in-process cache otherwise.
func ProvideLikelihoodCache(cfg *config.Config) (likelihood.ReportCache, func() error) {
	if cfg.RedisAddr == "" {
		return likelihood.NewMemoryCache(), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return likelihood.NewRedisCache(client, "likelihood:", cfg.LikelihoodCacheTTL), client.Close
}

func ProvideSessionConfig(cfg *config.Config) *services.Config {
	c := services.DefaultConfig()
	c.IdleTTL = cfg.SessionIdleTTL
	c.JanitorSpec = cfg.JanitorSchedule
	return c
}

func ProvideOrchestratorConfig(cfg *config.Config) *orchestrator.Config {
	c := orchestrator.DefaultConfig()
	c.SimulatedTurns = cfg.SimulatedTurns
	return c
}

func ProvideLiveConfig(cfg *config.Config) *live.Config {
	c := live.DefaultConfig()
	c.DebounceWindow = cfg.LiveDebounceWindow
	c.MinRecommendInterval = cfg.LiveRecommendEvery
	c.MaxUnasked = cfg.LiveMaxUnasked
	return c
}
