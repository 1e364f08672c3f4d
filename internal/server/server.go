// Package server wires the HTTP surface, the document store container
// and the processing services into one lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/aicorrect"
	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/config"
	"github.com/Dweliw01/DocuFlow-sub000/internal/connector"
	"github.com/Dweliw01/DocuFlow-sub000/internal/engines"
	"github.com/Dweliw01/DocuFlow-sub000/internal/extract"
	"github.com/Dweliw01/DocuFlow-sub000/internal/home"
	"github.com/Dweliw01/DocuFlow-sub000/internal/pipeline"
	"github.com/Dweliw01/DocuFlow-sub000/internal/review"
	"github.com/Dweliw01/DocuFlow-sub000/internal/router"
	"github.com/Dweliw01/DocuFlow-sub000/internal/server/endpoints"
	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
	"github.com/Dweliw01/DocuFlow-sub000/internal/svcctx"
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Server is the main DocuFlow HTTP server.
// It manages the document store container lifecycle - starting it on
// server start and stopping it on server shutdown.
type Server struct {
	httpServer   *http.Server
	storeManager *store.DockerManager
	storeClient  *store.Client
	storeSink    *store.Sink
	repo         *store.Repo
	engines      *engines.Registry
	pool         *pipeline.Pool
	configMgr    *config.Manager
	homeDir      *home.Dir
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	// cancels the worker pool on shutdown
	poolCancel context.CancelFunc

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// StoreDataPath is the path to persist store data
	StoreDataPath string
	// StoreConfig holds store container settings
	StoreConfig store.DockerConfig
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the resolved application home directory
	Home *home.Dir
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
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}

	appCfg := cfg.ConfigManager.Get()

	if cfg.StoreConfig.ContainerName == "" {
		cfg.StoreConfig.ContainerName = appCfg.Store.ContainerName
	}
	if cfg.StoreConfig.Image == "" {
		cfg.StoreConfig.Image = appCfg.Store.Image
	}
	if cfg.StoreConfig.HostPort == "" {
		cfg.StoreConfig.HostPort = appCfg.Store.Port
	}
	if cfg.StoreDataPath != "" {
		cfg.StoreConfig.DataPath = cfg.StoreDataPath
	}

	storeManager, err := store.NewDockerManager(cfg.StoreConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create store manager: %w", err)
	}

	// Create engine registry and populate it from config
	registry := engines.NewRegistry()
	registry.SetLogger(cfg.Logger)
	reloadEngines(registry, appCfg)

	// Watch for config changes
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		reloadEngines(registry, c)
		cfg.Logger.Info("engine registry reloaded from config")
	})

	s := &Server{
		storeManager: storeManager,
		engines:      registry,
		configMgr:    cfg.ConfigManager,
		homeDir:      cfg.Home,
		logger:       cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{StoreManager: storeManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// reloadEngines rebuilds the engine registry entries from config.
// Engines removed from config are unregistered; routing decisions see
// the change on the next document.
func reloadEngines(registry *engines.Registry, cfg *config.Config) {
	for _, kind := range []types.EngineKind{types.EngineLocal, types.EnginePremium, types.EngineHandwriting} {
		ecfg, ok := cfg.GetEngine(string(kind))
		if !ok || !ecfg.Enabled {
			registry.Unregister(kind)
			continue
		}
		switch kind {
		case types.EngineLocal:
			registry.Register(engines.NewLocalEngine(engines.LocalConfig{
				BaseURL:   ecfg.Endpoint,
				Language:  ecfg.Language,
				RateLimit: ecfg.RateLimit,
			}))
		case types.EnginePremium:
			registry.Register(engines.NewPremiumEngine(engines.PremiumConfig{
				APIKey:    config.ResolveEnvVars(ecfg.APIKey),
				BaseURL:   ecfg.Endpoint,
				Model:     ecfg.Model,
				RateLimit: ecfg.RateLimit,
			}))
		case types.EngineHandwriting:
			registry.Register(engines.NewHandwritingEngine(engines.HandwritingConfig{
				APIKey:    config.ResolveEnvVars(ecfg.APIKey),
				Model:     ecfg.Model,
				BaseURL:   ecfg.Endpoint,
				RateLimit: ecfg.RateLimit,
			}))
		}
	}
}

// buildConnector constructs the destination connector from config.
func buildConnector(cfg config.ConnectorCfg) (connector.Connector, error) {
	switch cfg.Type {
	case "", "http":
		return connector.NewHTTP(connector.HTTPConfig{
			BaseURL:  cfg.BaseURL,
			APIKey:   config.ResolveEnvVars(cfg.APIKey),
			TargetID: cfg.TargetID,
		}), nil
	case "mock":
		return &connector.MockConnector{}, nil
	default:
		return nil, fmt.Errorf("unknown connector type: %s", cfg.Type)
	}
}

// Start starts the server, the store container and the worker pool.
// It blocks until the context is cancelled or an error occurs.
// If an existing store container exists, it validates the configuration
// matches.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	// Validate any existing container matches our config
	if err := s.storeManager.ValidateExisting(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("existing store container incompatible: %w", err)
	}

	// Start the document store
	s.logger.Info("starting document store")
	if err := s.storeManager.Start(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to start document store: %w", err)
	}

	// Create client after the store is up
	s.storeClient = store.NewClient(s.storeManager.URL())

	// Verify the store is healthy
	if err := s.storeClient.HealthCheck(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("store health check failed: %w", err)
	}
	s.logger.Info("document store is ready", "url", s.storeManager.URL())

	// Initialize schemas
	s.logger.Info("initializing schemas")
	if err := store.InitializeSchemas(ctx, s.storeClient, s.logger); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	s.repo = store.NewRepo(s.storeClient)

	// Async write sink for fire-and-forget audit events
	s.storeSink = store.NewSink(store.SinkConfig{
		Client: s.storeClient,
		Logger: s.logger,
	})
	s.storeSink.Start(ctx)

	// AI correction layer; nil disables it and low-confidence text
	// passes through uncorrected
	var corrector router.Corrector
	aiKey := config.ResolveEnvVars(appCfg.AI.APIKey)
	if appCfg.AI.Enabled && aiKey != "" {
		corrector = aicorrect.New(aicorrect.Config{
			APIKey:  aiKey,
			Model:   appCfg.AI.CorrectionModel,
			BaseURL: appCfg.AI.BaseURL,
			Timeout: time.Duration(appCfg.AI.TimeoutSeconds) * time.Second,
			Logger:  s.logger,
		})
	} else {
		s.logger.Warn("AI correction disabled")
	}

	fieldExtractor, err := extract.New(extract.Config{
		APIKey:  aiKey,
		Model:   appCfg.AI.ExtractionModel,
		BaseURL: appCfg.AI.BaseURL,
		Timeout: time.Duration(appCfg.AI.TimeoutSeconds) * time.Second,
		Logger:  s.logger,
	})
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create field extractor: %w", err)
	}

	// Destination connector and upload path
	conn, err := buildConnector(appCfg.Connector)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to create connector: %w", err)
	}
	uploader := connector.NewUploadService(conn, s.repo, appCfg.Connector.TargetID, s.logger)
	reviewSvc := review.NewService(s.repo, uploader, s.logger)

	// OCR runner and document processor
	runner := router.NewRunner(s.engines, corrector, router.Config{
		ValidityFloor: appCfg.Pipeline.ValidityFloor,
	}, s.logger)
	processor := pipeline.NewProcessor(s.repo, runner, s.engines, fieldExtractor, reviewSvc, s.logger)
	processor.Events = store.NewEventLog(s.storeSink)

	// Worker pool
	s.pool = pipeline.NewPool(pipeline.PoolConfig{
		Logger:      s.logger,
		Processor:   processor,
		Store:       s.repo,
		WorkerCount: appCfg.Pipeline.Workers,
		QueueSize:   appCfg.Pipeline.QueueSize,
	})
	poolCtx, poolCancel := context.WithCancel(context.Background())
	s.poolCancel = poolCancel
	go s.pool.Start(poolCtx)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		StoreClient: s.storeClient,
		StoreSink:   s.storeSink,
		Repo:        s.repo,
		Engines:     s.engines,
		Pool:        s.pool,
		Review:      reviewSvc,
		Connector:   conn,
		Config:      s.configMgr,
		Logger:      s.logger,
		Home:        s.homeDir,
	}

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

// shutdown performs graceful shutdown of the HTTP server, worker pool
// and store container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop dispatching new documents; in-flight ones finish on their own
	if s.poolCancel != nil {
		s.poolCancel()
	}

	// Flush pending audit events
	if s.storeSink != nil {
		s.storeSink.Stop()
	}

	s.logger.Info("stopping document store")
	if err := s.storeManager.Stop(shutdownCtx); err != nil {
		s.logger.Error("store stop error", "error", err)
	}

	if err := s.storeManager.Close(); err != nil {
		s.logger.Error("store manager close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
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

// StoreClient returns the document store client.
// Returns nil if the server hasn't started yet.
func (s *Server) StoreClient() *store.Client {
	return s.storeClient
}

// Repo returns the typed repository.
// Returns nil if the server hasn't started yet.
func (s *Server) Repo() *store.Repo {
	return s.repo
}

// Engines returns the engine registry.
func (s *Server) Engines() *engines.Registry {
	return s.engines
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
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
// Returns 503 Service Unavailable if the store or worker pool aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.storeClient == nil || s.pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
