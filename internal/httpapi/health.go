package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// dbPinger reports persistence reachability. Satisfied by *pgxpool.Pool.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// userCounter reports the total user count. Satisfied by *users.Repository.
type userCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler serves the public health endpoint.
type HealthHandler struct {
	db     dbPinger
	users  userCounter
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db dbPinger, users userCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, users: users, logger: logger}
}

// Register mounts the health route on the provided router group.
func (h *HealthHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health handles GET /health — reports API and database status.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		RecordHealthCheck(false)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":    "unhealthy",
			"message":   "Database connection failed",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	count, err := h.users.Count(ctx)
	if err != nil {
		h.logger.Warn("health check: user count failed", zap.Error(err))
		RecordHealthCheck(false)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":    "unhealthy",
			"message":   "Database connection failed",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	RecordHealthCheck(true)
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"message":   "UniFlow API is running",
		"database":  "connected",
		"userCount": count,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
