// Package server exposes the webhook and status HTTP surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hl-signal-relay/internal/account"
	"hl-signal-relay/internal/exec"
	"hl-signal-relay/internal/relay"
)

const shutdownTimeout = 5 * time.Second

type statusSource interface {
	Snapshot(ctx context.Context) (*account.Snapshot, error)
}

type processor interface {
	Process(ctx context.Context, alert relay.Alert) exec.Result
}

// Info is the static identity reported on the status endpoints.
type Info struct {
	Wallet  string
	Testnet bool
	Symbol  string
	Version string
}

type Server struct {
	engine *gin.Engine
	srv    *http.Server
	proc   processor
	status statusSource
	log    *zap.Logger
	info   Info
}

func New(listen string, proc processor, status statusSource, metricsHandler http.Handler, log *zap.Logger, info Info) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recoverJSON(log), requestLogger(log))

	s := &Server{
		engine: engine,
		proc:   proc,
		status: status,
		log:    log,
		info:   info,
	}
	s.routes(metricsHandler)
	s.srv = &http.Server{
		Addr:    listen,
		Handler: engine,
	}
	return s
}

func (s *Server) routes(metricsHandler http.Handler) {
	s.engine.GET("/", s.handleStatus)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/webhook", s.handleWebhook)
	if metricsHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("http server listening", zap.String("addr", s.srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleStatus(c *gin.Context) {
	wallet := s.info.Wallet
	if wallet == "" {
		wallet = "simulation"
	}
	body := gin.H{
		"wallet":    wallet,
		"testnet":   s.info.Testnet,
		"symbol":    s.info.Symbol,
		"version":   s.info.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	snap, err := s.status.Snapshot(c.Request.Context())
	if err != nil {
		s.log.Warn("status snapshot failed", zap.Error(err))
		body["account_connected"] = false
		body["account"] = gin.H{"error": err.Error()}
	} else {
		body["account_connected"] = true
		body["account"] = gin.H{
			"withdrawable": snap.Withdrawable,
			"positions":    len(snap.Positions),
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleWebhook(c *gin.Context) {
	var alert relay.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, exec.Result{
			Status:  exec.StatusError,
			Message: "malformed alert body",
		})
		return
	}

	result := s.proc.Process(c.Request.Context(), alert)
	switch result.Status {
	case exec.StatusSuccess, exec.StatusSimulated:
		c.JSON(http.StatusOK, result)
	case exec.StatusError:
		c.JSON(http.StatusBadRequest, result)
	default:
		c.JSON(http.StatusInternalServerError, result)
	}
}

// recoverJSON keeps the contract that the caller always gets a JSON
// body, even when a handler panics.
func recoverJSON(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, exec.Result{
					Status:  exec.StatusError,
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// Health probes are too chatty to log.
		if c.Request.URL.Path == "/health" {
			return
		}
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
