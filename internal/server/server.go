// Package server implements the read-only local diagnostics HTTP server:
// /status, /triggers, /metrics. The messaging bus itself is out of scope;
// this is purely an operator-facing introspection surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/agent"
	"github.com/archipel-project/vmagent/internal/config"
)

// Server is the diagnostics HTTP server for one agent instance.
type Server struct {
	cfg    config.Server
	agent  *agent.Agent
	reg    *prometheus.Registry
	router *gin.Engine
	http   *http.Server
}

// NewServer builds the gin engine with the logger/recovery middleware
// stack and registers the read-only routes.
func NewServer(cfg config.Server, a *agent.Agent, reg *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(zap.L().Named("http"), time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zap.L().Named("http"), true))

	s := &Server{cfg: cfg, agent: a, reg: reg, router: router}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/triggers", s.handleTriggers)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
}

func (s *Server) handleStatus(c *gin.Context) {
	identity := s.agent.Identity()
	c.JSON(http.StatusOK, gin.H{
		"uuid":         identity.UUID.String(),
		"jid":          identity.JID,
		"has_domain":   s.agent.HasDomain(),
		"is_migrating": s.agent.IsMigrating(),
	})
}

func (s *Server) handleTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"triggers": s.agent.SnapshotTriggers()})
}

// Start blocks serving HTTP until ctx is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
