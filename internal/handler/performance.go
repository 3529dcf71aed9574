package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goldsignal/internal/models"
)

type PerformanceHandler struct {
	Monitor GateStatus
}

func (h *PerformanceHandler) Register(r *gin.Engine) {
	group := r.Group("/api/performance")
	group.GET("", h.performance)
	group.GET("/report", h.report)
}

type performanceView struct {
	Report  string                     `json:"report"`
	Metrics *models.PerformanceMetrics `json:"metrics"`
	Status  models.SignalStatus        `json:"status"`
}

// @Summary Performance metrics and gate state
// @Tags performance
// @Success 200 {object} map[string]any
// @Router /api/performance [get]
func (h *PerformanceHandler) performance(c *gin.Context) {
	report, err := h.Monitor.Report()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	metrics, err := h.Monitor.Metrics()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	status, err := h.Monitor.Status()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, performanceView{Report: report, Metrics: metrics, Status: status}, nil)
}

func (h *PerformanceHandler) report(c *gin.Context) {
	report, err := h.Monitor.Report()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"report": report}, nil)
}
