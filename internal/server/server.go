package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agribot/internal/agent"
	"agribot/internal/agent/ports"
	"agribot/internal/config"
	"agribot/internal/logging"
	"agribot/internal/metrics"
	"agribot/internal/rag"
	"agribot/internal/stt"
	"agribot/internal/tts"
	"agribot/internal/vision"
)

// ConversationEngine is the agent surface the HTTP layer drives.
type ConversationEngine interface {
	Respond(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Stream(ctx context.Context, req agent.TurnRequest, onDelta func(ports.ContentDelta)) (*agent.TurnResult, error)
}

// Deps collects everything the handlers need. Engine is required; nil
// optional collaborators disable their routes with a clear error instead of
// panicking.
type Deps struct {
	Engine      ConversationEngine
	Transcriber stt.Transcriber
	Speech      tts.Provider
	Classifier  vision.Classifier
	Ingester    *rag.Ingester
	Logger      logging.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

// Server owns the gin engine and the underlying http.Server.
type Server struct {
	cfg     config.ServerConfig
	router  *gin.Engine
	httpSrv *http.Server
	deps    Deps
	logger  logging.Logger
	metrics *metrics.Metrics
}

// New wires the routes and middleware. It does not start listening.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("server requires a conversation engine")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	deps.Logger = logging.OrNop(deps.Logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.MaxUploadMB > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadMB << 20
	}

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		router.Use(cors.New(corsConfig))
	}

	s := &Server{
		cfg:     cfg,
		router:  router,
		deps:    deps,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	s.registerRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		// WriteTimeout bounds the whole response, including long SSE streams.
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/v1/health", s.handleHealth)

	v1 := s.router.Group("/v1", s.observed())
	v1.POST("/chat", s.handleChat)
	v1.POST("/voice", s.handleVoice)
	v1.POST("/image/classify", s.handleImageClassify)
	v1.POST("/tts", s.handleTTS)
	v1.POST("/admin/kb/ingest", s.handleKBIngest)

	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// observed records per-handler request duration.
func (s *Server) observed() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.FullPath(), fmt.Sprintf("%d", c.Writer.Status()), time.Since(start))
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
