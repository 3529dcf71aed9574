package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"goldsignal/internal/models"
)

// EngineControl is the engine slice the API drives.
type EngineControl interface {
	Running() bool
	Start()
	Stop()
	LastSignal() *models.Signal
}

// TradeLister is the tracker slice the API reads.
type TradeLister interface {
	ActiveTrades() ([]models.Trade, error)
	AllTrades() ([]models.Trade, error)
}

// GateStatus is the monitor slice the API reads.
type GateStatus interface {
	Status() (models.SignalStatus, error)
	Metrics() (*models.PerformanceMetrics, error)
	Report() (string, error)
}

type SystemHandler struct {
	Engine  EngineControl
	Monitor GateStatus
	Trades  TradeLister
}

func (h *SystemHandler) Register(r *gin.Engine) {
	r.GET("/api/status", h.status)
	r.POST("/api/system/start", h.start)
	r.POST("/api/system/stop", h.stop)
}

type systemStatus struct {
	Running           bool                `json:"running"`
	Status            models.SignalStatus `json:"status"`
	LastSignal        *models.Signal      `json:"last_signal,omitempty"`
	ActiveTradesCount int                 `json:"active_trades_count"`
	Timestamp         time.Time           `json:"timestamp"`
}

// @Summary System status
// @Tags system
// @Success 200 {object} map[string]any
// @Router /api/status [get]
func (h *SystemHandler) status(c *gin.Context) {
	status, err := h.Monitor.Status()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	active, err := h.Trades.ActiveTrades()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, systemStatus{
		Running:           h.Engine.Running(),
		Status:            status,
		LastSignal:        h.Engine.LastSignal(),
		ActiveTradesCount: len(active),
		Timestamp:         time.Now().UTC(),
	}, nil)
}

// @Summary Start signal generation
// @Tags system
// @Success 200 {object} map[string]any
// @Router /api/system/start [post]
func (h *SystemHandler) start(c *gin.Context) {
	h.Engine.Start()
	Ok(c, gin.H{"running": true}, nil)
}

// @Summary Stop signal generation
// @Tags system
// @Success 200 {object} map[string]any
// @Router /api/system/stop [post]
func (h *SystemHandler) stop(c *gin.Context) {
	h.Engine.Stop()
	Ok(c, gin.H{"running": false}, nil)
}
