package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"goldsignal/internal/generator"
	"goldsignal/internal/models"
)

type SignalHandler struct {
	Engine EngineControl
}

func (h *SignalHandler) Register(r *gin.Engine) {
	r.GET("/api/signal/current", h.current)
}

type currentSignal struct {
	Signal  *models.Signal `json:"signal"`
	Session string         `json:"session"`
}

func (h *SignalHandler) current(c *gin.Context) {
	sig := h.Engine.LastSignal()
	if sig == nil {
		Error(c, http.StatusNotFound, "no signal generated yet", nil)
		return
	}
	Ok(c, currentSignal{
		Signal:  sig,
		Session: generator.SessionName(sig.Timestamp),
	}, nil)
}
