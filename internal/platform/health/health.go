// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handler reports process liveness and dependency readiness.
// A nil db or redis client is treated as "not configured" and skipped.
type Handler struct {
	db      *gorm.DB
	redis   *redis.Client
	service string
}

// NewHandler creates a new Handler.
func NewHandler(db *gorm.DB, rdb *redis.Client, service string) *Handler {
	return &Handler{db: db, redis: rdb, service: service}
}

// RegisterRoutes registers /health and /ready.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/ready", h.Ready)
}

// Live always answers 200 while the process is serving.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready pings every configured dependency.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.db != nil {
		checks["postgres"] = "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["postgres"] = err.Error()
			ready = false
		}
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			ready = false
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "service": h.service, "checks": checks})
}
