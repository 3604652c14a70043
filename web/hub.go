package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"blacksky-md/session"
)

// Hub fans session status snapshots out to connected websocket clients so
// the status page can react without polling.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Reader loop only detects disconnects; clients never send anything
	// we care about.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes the snapshot to every client, dropping any whose write
// fails.
func (h *Hub) Broadcast(st session.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(st); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.clients, conn)
}

// Close disconnects all clients, used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
