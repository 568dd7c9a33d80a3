package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dataspect/dataspect/internal/analysis"
	"github.com/dataspect/dataspect/internal/api"
	"github.com/dataspect/dataspect/internal/automl"
	"github.com/dataspect/dataspect/internal/config"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/insights"
	"github.com/dataspect/dataspect/internal/jobstore"
	"github.com/dataspect/dataspect/internal/kaggle"
	"github.com/dataspect/dataspect/internal/pipeline"
	"github.com/dataspect/dataspect/internal/report"
	"github.com/dataspect/dataspect/internal/runner"
	"github.com/dataspect/dataspect/internal/server/endpoints"
	"github.com/dataspect/dataspect/internal/svcctx"
)

// Server is the main dataspect HTTP server. It owns the job store, the
// per-job pipeline launcher, and the retention janitor; everything the
// request handlers need travels through the request context.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	configMgr  *config.Manager
	store      *jobstore.Store
	launcher   *pipeline.Launcher
	janitor    *jobstore.Janitor
	engine     runner.Engine
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the dataspect home directory (uploads/outputs/static/notebooks)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	conf := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		conf = cfg.ConfigManager.Get()
	}

	engine, err := buildEngine(conf.Runner, cfg.Home, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner engine: %w", err)
	}

	store := jobstore.New(cfg.Logger)

	// LLM enrichment is best-effort: a nil completer means every analysis
	// job gets the placeholder insights with a logged fallback reason.
	var completer insights.Completer
	if apiKey := config.ResolveEnvVars(conf.LLM.APIKey); conf.LLM.Enabled && apiKey != "" {
		completer = insights.NewOpenAIClient(insights.OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     conf.LLM.BaseURL,
			Model:       conf.LLM.Model,
			MaxTokens:   conf.LLM.MaxTokens,
			Temperature: conf.LLM.Temperature,
			Timeout:     conf.LLM.Timeout,
		})
	} else {
		cfg.Logger.Info("llm enrichment disabled, insights will use placeholder payloads")
	}
	generator := insights.NewGenerator(completer, cfg.Logger)
	enricher := pipeline.NewInsightsEnricher(generator, cfg.Home, cfg.Logger)

	analysisWorker := analysis.NewWorker(store, cfg.Home, engine, enricher, cfg.Logger)
	automlWorker := automl.NewWorker(store, cfg.Home, engine, conf.AutoML.Budget, cfg.Logger)
	launcher := pipeline.New(store, analysisWorker, automlWorker, cfg.Logger)

	var kaggleClient *kaggle.Client
	if conf.Kaggle.Enabled {
		kaggleClient = kaggle.NewClient(kaggle.Config{
			Username: conf.Kaggle.Username,
			Key:      config.ResolveEnvVars(conf.Kaggle.Key),
		}, cfg.Logger)
	}

	renderer := report.NewRenderer(conf.Report.LatexCmd, conf.Report.PandocCmd, conf.Report.Timeout, cfg.Logger)

	s := &Server{
		home:      cfg.Home,
		configMgr: cfg.ConfigManager,
		store:     store,
		launcher:  launcher,
		engine:    engine,
		logger:    cfg.Logger,
	}

	s.janitor = jobstore.NewJanitor(store, conf.Storage.RetentionTTL, conf.Storage.SweepInterval,
		s.removeArtifacts, cfg.Logger)

	s.services = &svcctx.Services{
		Store:    store,
		Launcher: launcher,
		AutoML:   automlWorker,
		Kaggle:   kaggleClient,
		Renderer: renderer,
		Config:   cfg.ConfigManager,
		Logger:   cfg.Logger,
		Home:     cfg.Home,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{MaxUploadBytes: conf.Storage.MaxUploadBytes}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// buildEngine selects the execution backend from config.
func buildEngine(cfg config.RunnerCfg, h *home.Dir, logger *slog.Logger) (runner.Engine, error) {
	switch cfg.Mode {
	case "docker":
		return runner.NewDockerEngine(runner.DockerConfig{
			Image:     cfg.Image,
			Workspace: h.Path(),
			Timeout:   cfg.Timeout,
			Logger:    logger,
		})
	case "", "local":
		return runner.NewLocalEngine(runner.LocalConfig{
			Papermill: cfg.Papermill,
			Python:    cfg.Python,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown runner mode: %q", cfg.Mode)
	}
}

// Start starts the server, the home directory tree, and the retention
// janitor. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	s.logger.Info("runner engine ready", "backend", s.engine.Name())

	// Retention janitor runs for the life of the server
	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	go s.janitor.Run(janitorCtx)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the engine.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if closer, ok := s.engine.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error("engine close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// removeArtifacts deletes everything an evicted job left on disk.
func (s *Server) removeArtifacts(rec jobstore.Record) {
	if rec.Filepath != "" {
		_ = os.Remove(rec.Filepath)
	}
	for _, p := range s.home.JobArtifacts(rec.ID) {
		_ = os.Remove(p)
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Store returns the job store.
func (s *Server) Store() *jobstore.Store {
	return s.store
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler, including the service
// context middleware. Exposed for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or launcher aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.launcher == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
