// Package wsfeed implements the live event WebSocket feed: one
// gorilla/websocket connection per subscriber, fed from the event store's
// broadcast fan-out, following the donor's streaming.Client readPump/
// writePump/ping-ticker shape but simplified to the core's one-way,
// read-only feed (the donor's duplex stream subscription protocol has no
// analog here — a connection gets everything the store publishes).
package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reasoning-core/reasoning-core/internal/reasoning/config"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/domain"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/monitoring"
	"github.com/reasoning-core/reasoning-core/internal/reasoning/store"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Handler upgrades HTTP connections to WebSocket and streams events from
// the shared event store until the client disconnects.
type Handler struct {
	logger  *zap.Logger
	cfg     config.WebSocketConfig
	store   *store.Store
	metrics *monitoring.Metrics

	upgrader websocket.Upgrader
	active   int64
}

// New wires a Handler to its store and WebSocket tunables.
func New(logger *zap.Logger, cfg config.WebSocketConfig, eventStore *store.Store, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		logger:  logger.With(zap.String("component", "ws_feed")),
		cfg:     cfg,
		store:   eventStore,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// readyFrame is the greeting sent immediately after a successful upgrade.
type readyFrame struct {
	Type string `json:"type"`
}

// eventsFrame batches one or more events into a single WebSocket message.
type eventsFrame struct {
	Events []domain.EventWire `json:"events"`
}

// ServeHTTP upgrades the request and blocks for the life of the
// connection. Rejects new connections once MaxConnections is reached.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxConnections > 0 && atomic.LoadInt64(&h.active) >= int64(h.cfg.MaxConnections) {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	atomic.AddInt64(&h.active, 1)
	defer atomic.AddInt64(&h.active, -1)
	if h.metrics != nil {
		h.metrics.WebSocketConnections.Inc()
		defer h.metrics.WebSocketConnections.Dec()
	}

	sub := h.store.Subscribe()
	defer h.store.Unsubscribe(sub)

	conn.SetReadLimit(int64(h.cfg.ReadBufferSize))
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := h.sendJSON(conn, readyFrame{Type: "ready"}); err != nil {
		h.closeWith(conn, websocket.CloseInternalServerErr, "greeting failed")
		return
	}

	done := make(chan struct{})
	go h.readPump(conn, done)

	h.writePump(conn, sub, done)
}

// readPump discards client frames (this feed is one-way) but must keep
// reading so pongs and close frames are observed; it signals done on any
// read error, including a client-initiated close.
func (h *Handler) readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump drains the subscriber's broadcast channel onto the connection,
// pacing delivery through a per-subscriber token bucket so one slow
// consumer cannot be force-fed faster than it can read, and sends
// heartbeats on an idle timer so intermediaries don't reap the connection.
func (h *Handler) writePump(conn *websocket.Conn, sub *store.Subscriber, done <-chan struct{}) {
	limiter := newLimiter(h.cfg.RateLimitPerSec)
	heartbeat := time.NewTicker(heartbeatInterval(h.cfg.HeartbeatEvery))
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.closeWith(conn, websocket.CloseNormalClosure, "")
			return

		case event, ok := <-sub.C():
			if !ok {
				h.closeWith(conn, websocket.CloseNormalClosure, "")
				return
			}
			if err := limiter.Wait(); err != nil {
				h.closeWith(conn, websocket.CloseInternalServerErr, "rate limiter error")
				return
			}
			if err := h.sendJSON(conn, eventsFrame{Events: []domain.EventWire{event.ToWire()}}); err != nil {
				h.logger.Debug("websocket write error", zap.Error(err))
				h.closeWith(conn, websocket.CloseInternalServerErr, "write failed")
				return
			}
			if h.metrics != nil {
				h.metrics.WebSocketMessagesSent.Inc()
			}
			heartbeat.Reset(heartbeatInterval(h.cfg.HeartbeatEvery))

		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.closeWith(conn, websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (h *Handler) sendJSON(conn *websocket.Conn, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}

func heartbeatInterval(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 20 * time.Second
	}
	return configured
}

// rateLimiter paces event delivery to at most N per second per subscriber.
// A non-positive configured rate disables pacing entirely (unbounded).
type rateLimiter struct {
	limiter *rate.Limiter
}

func newLimiter(perSecond float64) *rateLimiter {
	if perSecond <= 0 {
		return &rateLimiter{}
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimiter) Wait() error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(context.Background())
}
