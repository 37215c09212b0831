package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parking-anpr/internal/domain/parking"
)

const (
	writeWait       = 5 * time.Second
	broadcastBuffer = 64
)

// Hub keeps the set of live WebSocket clients and pushes every session
// event to all of them. The client set is owned by the Run goroutine.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	clients    atomic.Int64
	log        zerolog.Logger
}

// NewHub accepts browser connections only from allowedOrigins. An empty list
// or "*" accepts any origin.
func NewHub(log zerolog.Logger, allowedOrigins []string) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws_hub").Logger(),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*websocket.Conn]struct{})
	defer func() {
		close(h.done)
		for conn := range clients {
			_ = conn.Close()
		}
		h.clients.Store(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			clients[conn] = struct{}{}
			h.clients.Store(int64(len(clients)))
			h.log.Debug().Int("clients", len(clients)).Msg("websocket client connected")

		case conn := <-h.unregister:
			if _, ok := clients[conn]; ok {
				delete(clients, conn)
				_ = conn.Close()
			}
			h.clients.Store(int64(len(clients)))
			h.log.Debug().Int("clients", len(clients)).Msg("websocket client disconnected")

		case message := <-h.broadcast:
			for conn := range clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Debug().Err(err).Msg("dropping websocket client")
					delete(clients, conn)
					_ = conn.Close()
				}
			}
			h.clients.Store(int64(len(clients)))
		}
	}
}

// Publish queues the event for broadcast. A full queue drops the event
// rather than stalling the upload that produced it.
func (h *Hub) Publish(_ context.Context, event parking.SessionEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn().Str("plate", event.Plate).Msg("broadcast queue full, dropping event")
	}
	return nil
}

func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// ServeWS upgrades the request and keeps reading until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Msg("websocket read failed")
				}
				break
			}
		}
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()
}
