package web

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/sweeney/group-controller/internal/log"
)

const (
	writeWait       = 2 * time.Second
	broadcastBuffer = 16
)

// upgrader keeps gorilla's default origin check: only pages served by this
// host, or clients that send no Origin, may subscribe.
var upgrader = websocket.Upgrader{}

// hub fans live messages out to websocket clients. Only run writes to
// connections.
type hub struct {
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

func (h *hub) run() {
	ctx := context.Background()
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Debug(ctx, "ws: client connected", log.Count("clients", n))

		case conn := <-h.unregister:
			h.drop(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for c := range h.clients {
				conns = append(conns, c)
			}
			h.mu.RUnlock()
			for _, c := range conns {
				c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Debug(ctx, "ws: write failed", log.Err("error", err))
					h.drop(c)
				}
			}

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Debug(context.Background(), "ws: client disconnected", log.Count("clients", n))
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// broadcastMessage queues msg for every client, dropping it when the queue is
// full or nobody is listening.
func (h *hub) broadcastMessage(msg *LiveMessage) {
	if msg == nil || h.count() == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn(context.Background(), "ws: marshal failed", log.Err("error", err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn(context.Background(), "ws: broadcast queue full, dropping message")
	}
}

func (h *hub) serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug(c.Request.Context(), "ws: upgrade failed", log.Err("error", err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug(context.Background(), "ws: read failed", log.Err("error", err))
				}
				return
			}
		}
	}()
}
