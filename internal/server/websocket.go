package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow same-origin requests only
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // No origin header (e.g., non-browser clients)
		}
		// Compare origin to request host
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// clientSendBuffer bounds how far a feed client may fall behind before it
// is dropped.
const clientSendBuffer = 64

// feedMessage is the wire shape of one feed frame.
type feedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      string `json:"data,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans terminal session output and exit notifications out to every
// connected feed client. It is the sink the session pumps deliver into, so
// broadcasting must never block: clients that cannot keep up are dropped.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:     log,
		clients: make(map[*feedClient]struct{}),
	}
}

// Data broadcasts one chunk of session output.
func (h *Hub) Data(sessionID, data string) {
	h.broadcast(feedMessage{Type: "terminal:data", SessionID: sessionID, Data: data})
}

// Exit broadcasts that a session terminated on its own.
func (h *Hub) Exit(sessionID string) {
	h.broadcast(feedMessage{Type: "terminal:exit", SessionID: sessionID})
}

func (h *Hub) broadcast(msg feedMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("marshal feed message", zap.Error(err))
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer. Drop it rather than stall the session pumps.
			delete(h.clients, c)
			close(c.send)
			h.log.Warn("dropping slow feed client")
		}
	}
	h.mu.Unlock()
}

// ClientCount reports how many feed clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// handleTerminalFeed upgrades the connection and streams feed frames until
// the client goes away. The feed is one-directional: terminal input arrives
// over the write endpoint, not the socket.
func (s *Server) handleTerminalFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, clientSendBuffer)}
	s.hub.register(c)

	go func() {
		for payload := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// Clients send nothing meaningful; keep reading to process control
	// frames and notice the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.unregister(c)
	conn.Close()
}
