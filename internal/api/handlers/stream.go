package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/creco/imaikura/internal/rates"
	"github.com/creco/imaikura/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber streams fetcher snapshots. *rates.Fetcher implements it.
type Subscriber interface {
	Subscribe() (<-chan rates.Snapshot, func())
}

// StreamHandler pushes rate snapshot transitions over a websocket
type StreamHandler struct {
	source   Subscriber
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(source Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log,
	}
}

// Rates streams every snapshot, starting with the current one
// GET /ws/rates
func (h *StreamHandler) Rates(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.source.Subscribe()
	defer cancel()

	// 受信は切断検知と pong 処理のみ
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(NewRatesResponse(snap)); err != nil {
				h.logger.WithError(err).Debug("WebSocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
