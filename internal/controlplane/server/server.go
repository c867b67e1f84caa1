package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/sparkswap/sparkbot/internal/metrics"
	"github.com/sparkswap/sparkbot/internal/services"
	"github.com/sparkswap/sparkbot/pkg/logger"
)

// StatusSource 提供周期结果快照
type StatusSource interface {
	Snapshot() []services.MarketStats
}

type Config struct {
	Addr    string
	Markets []string
	DryRun  bool
}

// Server is the read-only status endpoint of a running bot.
type Server struct {
	cfg       Config
	status    StatusSource
	startedAt time.Time
	httpSrv   *http.Server
}

type statusResponse struct {
	StartedAt time.Time              `json:"started_at"`
	Uptime    string                 `json:"uptime"`
	DryRun    bool                   `json:"dry_run"`
	Markets   []string               `json:"markets"`
	Outcomes  []services.MarketStats `json:"outcomes"`
}

func New(cfg Config, status StatusSource) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("listen address is required")
	}
	if status == nil {
		return nil, errors.New("status source is required")
	}
	s := &Server{cfg: cfg, status: status, startedAt: time.Now()}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/debug/vars", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)

	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	outcomes := s.status.Snapshot()
	if outcomes == nil {
		outcomes = []services.MarketStats{}
	}
	c.JSON(http.StatusOK, statusResponse{
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		DryRun:    s.cfg.DryRun,
		Markets:   s.cfg.Markets,
		Outcomes:  outcomes,
	})
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		logger.Infof("status server listening on %s", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("status server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
