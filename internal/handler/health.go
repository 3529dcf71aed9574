package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goldsignal/internal/db"
	"goldsignal/internal/store"
)

type HealthHandler struct {
	Store *store.Store
	// DB is the optional archive database; nil when archiving is disabled.
	DB *db.DB
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_missing"})
		return
	}
	if _, err := h.Store.Trades(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unreadable"})
		return
	}
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
