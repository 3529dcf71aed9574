package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"goldsignal/internal/models"
	"goldsignal/internal/service"
)

// Event names on the dashboard stream.
const (
	EventNewSignal    = "new_signal"
	EventTradeClosed  = "trade_closed"
	EventStatusUpdate = "status_update"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans engine events out to every connected dashboard. Clients only
// listen; anything they send is drained and ignored.
type Hub struct {
	Logger *zap.Logger
	// WriteTimeout bounds one broadcast write; a peer slower than this is
	// dropped. Defaults to 5s.
	WriteTimeout time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func (h *Hub) writeTimeout() time.Duration {
	if h.WriteTimeout > 0 {
		return h.WriteTimeout
	}
	return 5 * time.Second
}

// ServeHTTP upgrades the request and parks it until the peer disconnects.
// The dashboard may be served from another origin, so origin checks are off,
// same as the REST API.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Logger.Warn("ws accept failed", zap.Error(err))
		return
	}
	h.add(conn)
	defer h.remove(conn, websocket.StatusNormalClosure, "")

	h.Logger.Info("ws client connected", zap.Int("clients", h.Clients()))
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conns == nil {
		h.conns = make(map[*websocket.Conn]struct{})
	}
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn, status websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close(status, reason)
	}
}

// Clients is the current connection count.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) NewSignal(sig models.Signal) {
	h.broadcast(EventNewSignal, sig)
}

func (h *Hub) TradeClosed(trade models.Trade) {
	h.broadcast(EventTradeClosed, trade)
}

func (h *Hub) StatusUpdate(update service.StatusUpdate) {
	h.broadcast(EventStatusUpdate, update)
}

func (h *Hub) broadcast(event string, data any) {
	payload, err := json.Marshal(envelope{Type: event, Data: data})
	if err != nil {
		h.Logger.Error("ws marshal failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout())
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			delete(h.conns, conn)
			_ = conn.Close(websocket.StatusPolicyViolation, "write timeout")
			h.Logger.Info("ws client dropped", zap.Error(err))
		}
	}
}

// CloseAll disconnects every client, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = map[*websocket.Conn]struct{}{}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
}
