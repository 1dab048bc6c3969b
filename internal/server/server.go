package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cafe-orders/internal/config"
	"cafe-orders/internal/logger"
)

// Probe reports whether a dependency is reachable
type Probe func(ctx context.Context) error

// Routes is implemented by each service handler to mount its endpoints. Admin
// endpoints live on authed and add RequireAdmin themselves.
type Routes interface {
	Register(public, authed *gin.RouterGroup)
}

// NewEngine builds the gin engine with recovery and request logging installed
func NewEngine(log *logger.Logger) *gin.Engine {
	RegisterValidators()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "Route not found")
	})
	return engine
}

// Server wraps the HTTP listener serving the API
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *logger.Logger
	probes map[string]Probe
}

// New creates a server with /health and every handler mounted under /api
func New(cfg config.ServerConfig, secret string, log *logger.Logger, probes map[string]Probe, handlers ...Routes) *Server {
	engine := NewEngine(log)
	s := &Server{
		engine: engine,
		logger: log,
		probes: probes,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	engine.GET("/health", s.healthCheck)

	api := engine.Group("/api")
	authed := api.Group("", Authenticate(secret, log))
	for _, h := range handlers {
		h.Register(api, authed)
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("server_started", "HTTP server listening", "", map[string]interface{}{
		"addr": s.http.Addr,
	})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.probes))
	healthy := true
	for name, probe := range s.probes {
		if err := probe(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "cafe-orders",
		"checks":    checks,
	}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	c.JSON(status, body)
}
