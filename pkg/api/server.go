// Package api exposes the control surface of the moderation engine:
// health, action approval, and deployment lifecycle commands.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sneakbots/sentinel/pkg/database"
	"github.com/sneakbots/sentinel/pkg/models"
)

const shutdownTimeout = 10 * time.Second

// Approver settles operator decisions on approval-gated action logs.
type Approver interface {
	Approve(ctx context.Context, logID uuid.UUID) (*models.ActionLog, error)
	Decline(ctx context.Context, logID uuid.UUID) (*models.ActionLog, error)
}

// ActionLogReader serves action log lookups.
type ActionLogReader interface {
	GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error)
	ListActionLogs(ctx context.Context, deploymentID uuid.UUID) ([]*models.ActionLog, error)
}

// DeploymentReader serves deployment lookups.
type DeploymentReader interface {
	GetDeployment(ctx context.Context, id uuid.UUID) (*models.Deployment, error)
}

// Publisher sends deployment lifecycle events to the bus.
type Publisher interface {
	Publish(ctx context.Context, ev *models.DeploymentEvent) error
}

// Deps bundles the server's collaborators.
type Deps struct {
	Pool        *pgxpool.Pool
	Logs        ActionLogReader
	Approver    Approver
	Deployments DeploymentReader
	Events      Publisher
	Logger      *slog.Logger
}

// Server is the HTTP control plane.
type Server struct {
	router *gin.Engine
	deps   Deps
	logger *slog.Logger
}

// NewServer builds the router. Gin runs in release mode; request logging
// goes through slog like everything else.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		deps:   deps,
		logger: deps.Logger,
	}
	s.router.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	v1.GET("/actions/:log_id", s.getActionLog)
	v1.PATCH("/actions/:log_id", s.decideAction)
	v1.GET("/deployments/:deployment_id/actions", s.listActionLogs)
	v1.POST("/deployments/:deployment_id/start", s.startDeployment)
	v1.POST("/deployments/:deployment_id/stop", s.stopDeployment)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("API server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Pool == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.deps.Pool)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbHealth,
	})
}
