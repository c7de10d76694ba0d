package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pageplane/pageplane/internal/cdp"
	"github.com/pageplane/pageplane/internal/config"
	"github.com/pageplane/pageplane/internal/monitoring"
	"github.com/pageplane/pageplane/internal/policy"
	"github.com/pageplane/pageplane/internal/world"
)

// Server is the gateway process: both websocket endpoints plus the HTTP
// read surface.
type Server struct {
	cfg     config.GatewayConfig
	log     *zap.Logger
	store   *world.Store
	guard   *policy.Guard
	metrics *monitoring.Metrics
	pending *pendingTable
	hub     *hub
	agents  *agentSet
	cdp     cdp.Client

	router  *gin.Engine
	httpSrv *http.Server
}

// Options carries optional collaborators for NewServer.
type Options struct {
	Policy  policy.Config
	CDP     cdp.Client
	Metrics *monitoring.Metrics
}

// NewServer wires the gateway. A nil CDP client degrades the cdp_*
// and navigate operations to deterministic errors.
func NewServer(cfg config.GatewayConfig, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CDP == nil {
		opts.CDP = cdp.Disconnected{}
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewDefault()
	}
	if opts.Policy.DomainMode == "" {
		opts.Policy = policy.DefaultConfig()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		store:   world.NewStore(log.Named("world")),
		guard:   policy.NewGuard(opts.Policy, log.Named("policy")),
		metrics: opts.Metrics,
		pending: newPendingTable(CommandTimeout),
		hub:     newHub(),
		agents:  newAgentSet(),
		cdp:     opts.CDP,
	}
	s.router = s.buildRouter()
	return s
}

// Store exposes the world state for embedding processes and tests.
func (s *Server) Store() *world.Store { return s.store }

// Guard exposes the policy guard.
func (s *Server) Guard() *policy.Guard { return s.guard }

// Router exposes the HTTP handler for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(s.rateLimitMiddleware())
	router.Use(gzipMiddleware())

	// Websocket endpoints.
	router.GET("/agent", s.HandleAgent)
	router.GET("/ws", s.HandleController)

	// Read surface.
	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/tabs", s.handleTabs)
	router.GET("/tabs/:id/candidates", s.handleCandidates)
	router.GET("/tabs/:id/search", s.handleSearch)
	router.POST("/command", s.handleCommand)
	router.GET("/policy", s.handleGetPolicy)
	router.POST("/policy", s.handleSetPolicy)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", zap.String("addr", s.cfg.Addr()))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Close releases collaborator resources.
func (s *Server) Close() error {
	return s.cdp.Close()
}
