package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"goldsignal/internal/repository"
)

// ArchiveHandler serves history queries over the mirror database. Repo is nil
// when the archive is disabled; every route then answers 503 instead of
// pretending the history is empty.
type ArchiveHandler struct {
	Repo repository.Repository
}

func (h *ArchiveHandler) Register(r *gin.Engine) {
	group := r.Group("/api/archive")
	group.GET("/signals", h.listSignals)
	group.GET("/trades", h.listTrades)
	group.GET("/status", h.listStatusEvents)
	group.GET("/summary", h.summary)
}

var signalOrderColumns = map[string]string{
	"emitted_at": "emitted_at",
	"confidence": "confidence",
}

var tradeOrderColumns = map[string]string{
	"exit_time":   "exit_time",
	"entry_time":  "entry_time",
	"profit_loss": "profit_loss",
}

// @Summary List archived signals
// @Tags archive
// @Param class query string false "BUY or SELL"
// @Param since query string false "RFC3339 lower bound on emitted_at"
// @Success 200 {object} map[string]any
// @Router /api/archive/signals [get]
func (h *ArchiveHandler) listSignals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSignalEventsParams{
		Limit:   limit,
		Offset:  offset,
		Class:   strQueryPtr(c, "class"),
		Since:   timeQueryPtr(c, "since"),
		Until:   timeQueryPtr(c, "until"),
		OrderBy: parseOrder(c.Query("order_by"), signalOrderColumns),
		Asc:     boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	items, err := h.Repo.ListSignalEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSignalEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List archived closed trades
// @Tags archive
// @Param result query string false "WIN, LOSS or BREAKEVEN"
// @Param model_version query string false "exact model version"
// @Success 200 {object} map[string]any
// @Router /api/archive/trades [get]
func (h *ArchiveHandler) listTrades(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradeEventsParams{
		Limit:        limit,
		Offset:       offset,
		Class:        strQueryPtr(c, "class"),
		Result:       strQueryPtr(c, "result"),
		ModelVersion: strQueryPtr(c, "model_version"),
		ExitReason:   strQueryPtr(c, "exit_reason"),
		Since:        timeQueryPtr(c, "since"),
		Until:        timeQueryPtr(c, "until"),
		OrderBy:      parseOrder(c.Query("order_by"), tradeOrderColumns),
		Asc:          boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	items, err := h.Repo.ListTradeEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTradeEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *ArchiveHandler) listStatusEvents(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListStatusEventsParams{
		Limit:  limit,
		Offset: offset,
		To:     strQueryPtr(c, "to"),
		Since:  timeQueryPtr(c, "since"),
		Asc:    boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	items, err := h.Repo.ListStatusEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountStatusEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type archiveSummaryView struct {
	Overall   repository.TradeSummary        `json:"overall"`
	ByVersion []repository.VersionSummaryRow `json:"by_version"`
}

// @Summary Closed-trade aggregates, overall and per model version
// @Tags archive
// @Success 200 {object} map[string]any
// @Router /api/archive/summary [get]
func (h *ArchiveHandler) summary(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	params := repository.TradeSummaryParams{
		ModelVersion: strQueryPtr(c, "model_version"),
		Since:        timeQueryPtr(c, "since"),
		Until:        timeQueryPtr(c, "until"),
	}
	overall, err := h.Repo.TradeSummary(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	byVersion, err := h.Repo.TradeSummaryByVersion(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, archiveSummaryView{Overall: overall, ByVersion: byVersion}, nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func timeQueryPtr(c *gin.Context, key string) *time.Time {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if parsed, err := time.Parse(time.RFC3339, val); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}

func parseOrder(value string, allow map[string]string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return ""
	}
	if mapped, ok := allow[key]; ok {
		return mapped
	}
	return ""
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}

func boolPtr(v bool) *bool { return &v }
