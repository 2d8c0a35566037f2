package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/cloudlab/internal/apierr"
	"github.com/nao1215/cloudlab/internal/config"
	applog "github.com/nao1215/cloudlab/internal/log"
	"github.com/nao1215/cloudlab/internal/pipeline"
)

// Defaults for Server.
const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxUploadSize   = 26 << 20
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Server is the HTTP front.
type Server struct {
	runner *pipeline.Runner
	logger *slog.Logger

	allowOrigins    []string
	shutdownTimeout time.Duration
	maxUploadSize   int64

	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowOrigins sets the CORS origins allowed to call the API.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowOrigins = origins
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithMaxUploadSize bounds request bodies.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUploadSize = n
	}
}

// New builds the router.
func New(runner *pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		runner:          runner,
		allowOrigins:    []string{"http://localhost:3000"},
		shutdownTimeout: DefaultShutdownTimeout,
		maxUploadSize:   DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.limitBody())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.health)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/detect", s.detect)
		apiV1.POST("/translate", s.translate)
		apiV1.POST("/summarize", s.summarize)
		apiV1.POST("/speak", s.speak)
		apiV1.POST("/transcribe", s.transcribe)
		apiV1.POST("/imagine", s.imagine)
	}
	return router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) health(c *gin.Context) {
	pages := make(map[string]string)
	for p, err := range s.runner.Available() {
		if err != nil {
			pages[string(p)] = "unconfigured"
			continue
		}
		pages[string(p)] = "ok"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": config.AppName,
		"pages":   pages,
	})
}

// fail writes err as an ErrorResponse.
func (s *Server) fail(c *gin.Context, err error) {
	status, message := classify(err)
	s.logger.Warn("request failed",
		"path", c.FullPath(),
		"status", status,
		"reason", apierr.ReasonOf(err).String(),
		"error", err,
	)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:  status,
		Message: message,
		Error:   applog.RedactURL(err.Error()),
	})
}

// badRequest writes a 400 for input the handler rejected itself.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.fail(c, apierr.InvalidInput("server", err))
}

// classify maps a failure to an HTTP status and a short message.
func classify(err error) (int, string) {
	switch apierr.ReasonOf(err) {
	case apierr.ReasonConfig:
		return http.StatusServiceUnavailable, "Page is not configured"
	case apierr.ReasonUpstream:
		return http.StatusBadGateway, "Upstream API returned an error"
	case apierr.ReasonMalformed:
		return http.StatusBadGateway, "Upstream API returned an unexpected response"
	case apierr.ReasonTransport:
		return http.StatusGatewayTimeout, "Upstream API is unreachable"
	case apierr.ReasonInvalidInput:
		return http.StatusBadRequest, "Invalid request"
	case apierr.ReasonCanceled:
		return http.StatusRequestTimeout, "Request cancelled"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)
		}
		c.Next()
	}
}
