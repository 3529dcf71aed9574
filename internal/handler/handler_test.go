package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"goldsignal/internal/models"
)

type stubEngine struct {
	running bool
	last    *models.Signal
	starts  int
	stops   int
}

func (s *stubEngine) Running() bool              { return s.running }
func (s *stubEngine) Start()                     { s.starts++; s.running = true }
func (s *stubEngine) Stop()                      { s.stops++; s.running = false }
func (s *stubEngine) LastSignal() *models.Signal { return s.last }

type stubMonitor struct {
	status  models.SignalStatus
	metrics *models.PerformanceMetrics
	report  string
}

func (s *stubMonitor) Status() (models.SignalStatus, error) { return s.status, nil }
func (s *stubMonitor) Metrics() (*models.PerformanceMetrics, error) {
	return s.metrics, nil
}
func (s *stubMonitor) Report() (string, error) { return s.report, nil }

type stubTrades struct {
	trades []models.Trade
}

func (s *stubTrades) ActiveTrades() ([]models.Trade, error) {
	var active []models.Trade
	for _, tr := range s.trades {
		if tr.Active() {
			active = append(active, tr)
		}
	}
	return active, nil
}

func (s *stubTrades) AllTrades() ([]models.Trade, error) { return s.trades, nil }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s: %v (body=%s)", method, path, err, w.Body.String())
	}
	return w.Code, resp
}

func TestStatusEndpoint(t *testing.T) {
	eng := &stubEngine{running: true}
	trades := &stubTrades{trades: []models.Trade{
		{ID: "a", Status: models.TradeActive},
		{ID: "b", Status: models.TradeClosed},
	}}
	r := newTestRouter()
	(&SystemHandler{Engine: eng, Monitor: &stubMonitor{status: models.StatusActive}, Trades: trades}).Register(r)

	code, resp := doJSON(t, r, http.MethodGet, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data=%T want object", resp.Data)
	}
	if data["running"] != true {
		t.Fatalf("running=%v want=true", data["running"])
	}
	if data["status"] != "ACTIVE" {
		t.Fatalf("status=%v want=ACTIVE", data["status"])
	}
	if data["active_trades_count"] != float64(1) {
		t.Fatalf("active_trades_count=%v want=1", data["active_trades_count"])
	}
}

func TestStartStopEndpoints(t *testing.T) {
	eng := &stubEngine{}
	r := newTestRouter()
	(&SystemHandler{Engine: eng, Monitor: &stubMonitor{status: models.StatusActive}, Trades: &stubTrades{}}).Register(r)

	code, _ := doJSON(t, r, http.MethodPost, "/api/system/start")
	if code != http.StatusOK || eng.starts != 1 {
		t.Fatalf("start code=%d starts=%d", code, eng.starts)
	}
	code, _ = doJSON(t, r, http.MethodPost, "/api/system/stop")
	if code != http.StatusOK || eng.stops != 1 {
		t.Fatalf("stop code=%d stops=%d", code, eng.stops)
	}
}

func TestCurrentSignalEndpoint(t *testing.T) {
	r := newTestRouter()
	eng := &stubEngine{}
	(&SignalHandler{Engine: eng}).Register(r)

	code, _ := doJSON(t, r, http.MethodGet, "/api/signal/current")
	if code != http.StatusNotFound {
		t.Fatalf("code=%d want=404 before first signal", code)
	}

	eng.last = &models.Signal{
		Class:      models.ClassBuy,
		Confidence: 0.8,
		EntryPrice: decimal.RequireFromString("2005"),
		Timestamp:  time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
	code, resp := doJSON(t, r, http.MethodGet, "/api/signal/current")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	data := resp.Data.(map[string]any)
	if data["session"] != "London/NY Overlap" {
		t.Fatalf("session=%v want=London/NY Overlap", data["session"])
	}
}

func TestTradeEndpoints(t *testing.T) {
	trades := &stubTrades{trades: []models.Trade{
		{ID: "a", Status: models.TradeActive},
		{ID: "b", Status: models.TradeClosed},
	}}
	r := newTestRouter()
	(&TradeHandler{Trades: trades}).Register(r)

	code, resp := doJSON(t, r, http.MethodGet, "/api/trades")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	if resp.Meta["count"] != float64(2) {
		t.Fatalf("count=%v want=2", resp.Meta["count"])
	}

	code, resp = doJSON(t, r, http.MethodGet, "/api/trades/active")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	if resp.Meta["count"] != float64(1) {
		t.Fatalf("active count=%v want=1", resp.Meta["count"])
	}
}

func TestPerformanceEndpoint(t *testing.T) {
	mon := &stubMonitor{
		status: models.StatusSuspended,
		report: "GOLD TRADING SIGNALS PERFORMANCE REPORT",
		metrics: &models.PerformanceMetrics{
			TotalTrades: 12,
			WinRate:     0.5,
		},
	}
	r := newTestRouter()
	(&PerformanceHandler{Monitor: mon}).Register(r)

	code, resp := doJSON(t, r, http.MethodGet, "/api/performance")
	if code != http.StatusOK {
		t.Fatalf("code=%d want=200", code)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "SUSPENDED" {
		t.Fatalf("status=%v want=SUSPENDED", data["status"])
	}
	if data["report"] != mon.report {
		t.Fatalf("report=%v", data["report"])
	}
}
