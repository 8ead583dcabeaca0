package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/bus"
)

const (
	writeWait      = 10 * time.Second
	sendQueueDepth = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local debugging surface; any page may watch the stream.
		return true
	},
}

// eventHub fans bus events out to connected WebSocket clients. Slow clients
// are dropped rather than allowed to block the stream.
type eventHub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
	logger  *logrus.Logger
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newEventHub(logger *logrus.Logger) *eventHub {
	if logger == nil {
		logger = logrus.New()
	}
	return &eventHub{
		clients: make(map[*wsClient]bool),
		logger:  logger,
	}
}

// broadcastEvent is subscribed to the event bus.
func (h *eventHub) broadcastEvent(event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Debug("Dropping slow event stream client")
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *eventHub) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(client)
}

func (h *eventHub) writePump(client *wsClient) {
	defer client.conn.Close()

	for data := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(client)
			return
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (h *eventHub) readPump(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.remove(client)
			return
		}
	}
}

func (h *eventHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		client.conn.Close()
	}
}
