// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "thdscope/internal/log"
)

// WebSocketTransport broadcasts registry snapshots to connected UI
// clients as JSON text messages on /thd. It rate-limits broadcasts so
// a fast publisher cannot flood slow clients.
//
// Thread safety: the client map sits behind a mutex; Send may be
// called concurrently with connect/disconnect handling.
type WebSocketTransport struct {
	clients         map[*websocket.Conn]bool
	clientsMutex    sync.Mutex
	upgrader        websocket.Upgrader
	server          *http.Server
	sendRateLimiter time.Time
	minSendInterval time.Duration
}

// NewWebSocketTransport starts a broadcast server on the given port.
func NewWebSocketTransport(port string) *WebSocketTransport {
	t := &WebSocketTransport{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local UI clients only; no origin policy.
			},
		},
		minSendInterval: 33 * time.Millisecond, // ~30 Hz cap
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/thd", t.handleWebSocket)
	t.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		applog.Infof("WebSocket: snapshot server listening on port %s", port)
		if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
			applog.Errorf("WebSocket: server error: %v", err)
		}
	}()

	return t
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocket: upgrade error: %v", err)
		return
	}

	t.clientsMutex.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMutex.Unlock()
	applog.Infof("WebSocket: client connected, total: %d", total)

	// Drain reads to detect disconnects; clients never send payloads.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				t.clientsMutex.Lock()
				delete(t.clients, conn)
				t.clientsMutex.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// Send broadcasts a JSON payload to every connected client. Frames
// arriving faster than the rate limit are skipped, not queued.
func (t *WebSocketTransport) Send(data []byte) error {
	now := time.Now()
	if now.Sub(t.sendRateLimiter) < t.minSendInterval {
		return nil
	}
	t.sendRateLimiter = now

	t.clientsMutex.Lock()
	for client := range t.clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			applog.Debugf("WebSocket: dropping client: %v", err)
			client.Close()
			delete(t.clients, client)
		}
	}
	t.clientsMutex.Unlock()
	return nil
}

// Close disconnects all clients and shuts down the server.
func (t *WebSocketTransport) Close() error {
	applog.Infof("WebSocket: closing snapshot server")

	t.clientsMutex.Lock()
	for client := range t.clients {
		client.Close()
	}
	t.clients = make(map[*websocket.Conn]bool)
	t.clientsMutex.Unlock()

	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

// Ensure WebSocketTransport satisfies the interface.
var _ Transport = (*WebSocketTransport)(nil)
