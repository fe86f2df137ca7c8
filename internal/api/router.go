package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/siderealhq/genesis/internal/api/handlers"
	mw "github.com/siderealhq/genesis/internal/api/middleware"
	"github.com/siderealhq/genesis/internal/config"
	"github.com/siderealhq/genesis/internal/domain"
	"github.com/siderealhq/genesis/internal/llm"
	"github.com/siderealhq/genesis/internal/service"
	"github.com/siderealhq/genesis/internal/store"
)

// App holds the router and request metrics for lifecycle management.
type App struct {
	Router       *chi.Mux
	Sessions     *service.SessionManager
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	declarationStore := store.NewDeclarationStore(db)
	hypothesisStore := store.NewHypothesisStore(db)
	sessionStore := store.NewSessionStore(db)
	probeStore := store.NewProbeStore(db)

	// Question client via provider factory. A failed init falls back to the
	// mock client so every probe still goes out on the deterministic path.
	provider := config.QuestionProvider()
	questionClient, err := llm.NewClient(provider, config.QuestionAPIKey())
	if err != nil {
		logger.Warn("question client initialization failed, using mock",
			zap.String("provider", provider), zap.Error(err))
		questionClient = llm.NewMockClient()
	} else {
		logger.Info("question client initialized", zap.String("provider", provider))
	}

	// Services
	hypothesisSvc := service.NewHypothesisService(hypothesisStore, logger)
	updater := service.NewConfidenceUpdater(hypothesisStore, logger)
	registry := service.NewStrategyRegistry()
	for _, strat := range service.DefaultStrategies() {
		if err := registry.Register(strat); err != nil {
			return nil, err
		}
	}
	generator := service.NewProbeGenerator(questionClient, config.QuestionTimeout(), logger)
	sessionMgr := service.NewSessionManager(
		sessionStore, probeStore, declarationStore,
		hypothesisSvc, updater, registry, generator,
		config.SessionCacheSize(), logger,
	)
	sessionMgr.SetBudgets(config.MaxProbesPerSession(), config.MaxProbesPerField())

	// Handlers
	uncertaintyHandler := handlers.NewUncertaintyHandler(sessionMgr)
	converseHandler := handlers.NewConverseHandler(sessionMgr, probeStore, logger)
	sessionHandler := handlers.NewSessionHandler(sessionMgr, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Sessions:  sessionMgr,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/uncertainty", uncertaintyHandler.Declare)
		r.Post("/converse", converseHandler.Converse)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Get("/summary", sessionHandler.Summary)
			r.Post("/pause", sessionHandler.Pause)
			r.Post("/resume", sessionHandler.Resume)
		})
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.DeclarationStore = (*store.DeclarationStore)(nil)
	_ domain.HypothesisStore  = (*store.HypothesisStore)(nil)
	_ domain.SessionStore     = (*store.SessionStore)(nil)
	_ domain.ProbeStore       = (*store.ProbeStore)(nil)
	_ domain.QuestionClient   = (*llm.OpenAIClient)(nil)
	_ domain.QuestionClient   = (*llm.AnthropicClient)(nil)
	_ domain.QuestionClient   = (*llm.GeminiClient)(nil)
	_ domain.QuestionClient   = (*llm.MockClient)(nil)
)
