package webui

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flap/internal/content"
	"flap/internal/logging"
	"flap/internal/store"
)

// CircuitAdmin is the slice of the circuit breaker the API exposes.
type CircuitAdmin interface {
	AllCircuits(ctx context.Context) []store.CircuitState
	CircuitStatus(ctx context.Context, circuitID string) *store.CircuitState
	SetState(ctx context.Context, circuitID string, state store.State)
	ResetProviderCircuit(ctx context.Context, circuitID string)
}

// ContentService is the slice of the orchestrator the API exposes.
type ContentService interface {
	GenerateAndSend(ctx context.Context, genCtx content.GenerationContext) (*content.GeneratedContent, error)
	CachedContent() *content.GeneratedContent
}

// Config configures the HTTP listener.
type Config struct {
	Addr       string
	Debug      bool
	EnableCORS bool
}

// Server is the operator-facing HTTP surface: circuit admin, content
// inspection, manual generation, metrics, and a live frame feed.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	circuits   CircuitAdmin
	contentSvc ContentService
	hub        *Hub
	logger     logging.Logger
}

// NewServer wires routes; call Start to listen.
func NewServer(cfg Config, circuits CircuitAdmin, contentSvc ContentService) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		engine:     engine,
		circuits:   circuits,
		contentSvc: contentSvc,
		hub:        NewHub(),
		logger:     logging.NewComponentLogger("webui"),
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.GET("/circuits", s.handleListCircuits)
	api.GET("/circuits/:id", s.handleGetCircuit)
	api.POST("/circuits/:id/state", s.handleSetCircuitState)
	api.POST("/circuits/:id/reset", s.handleResetCircuit)
	api.GET("/content", s.handleGetContent)
	api.POST("/generate", s.handleGenerate)
	api.GET("/ws", s.hub.HandleWS)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until the context is canceled, then drains.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web ui listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	return s.httpServer.Shutdown(shutdownCtx)
}

// OnFrame feeds the live websocket stream. Wire it into the orchestrator's
// frame hook.
func (s *Server) OnFrame(layout [][]int, c *content.GeneratedContent) {
	s.hub.Broadcast(FrameEvent{Layout: layout, Content: c, SentAt: time.Now().UTC()})
}
