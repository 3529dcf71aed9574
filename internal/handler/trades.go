package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type TradeHandler struct {
	Trades TradeLister
}

func (h *TradeHandler) Register(r *gin.Engine) {
	group := r.Group("/api/trades")
	group.GET("", h.list)
	group.GET("/active", h.listActive)
}

// list returns the full trade list, closed history included.
func (h *TradeHandler) list(c *gin.Context) {
	trades, err := h.Trades.AllTrades()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, trades, countMeta(len(trades)))
}

func (h *TradeHandler) listActive(c *gin.Context) {
	trades, err := h.Trades.ActiveTrades()
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, trades, countMeta(len(trades)))
}
