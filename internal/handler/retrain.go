package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goldsignal/internal/retrain"
)

type RetrainHandler struct {
	Retrain *retrain.Service
	Logger  *zap.Logger
}

func (h *RetrainHandler) Register(r *gin.Engine) {
	r.POST("/api/retrain", h.trigger)
}

// trigger kicks off a retrain cycle in the background. The cycle outlives
// the request, so it runs on its own context; progress lands in the logs
// and the gate state.
func (h *RetrainHandler) trigger(c *gin.Context) {
	if h.Retrain == nil {
		Error(c, http.StatusServiceUnavailable, "retraining not configured", nil)
		return
	}
	if h.Retrain.Busy() {
		Error(c, http.StatusConflict, "retrain already running", nil)
		return
	}
	go func() {
		err := h.Retrain.Run(context.Background(), "manual api trigger")
		if err != nil && !errors.Is(err, retrain.ErrAlreadyRunning) {
			h.Logger.Error("manual retrain failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, apiResponse{Code: 0, Message: "retrain started"})
}
