package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rein/internal/metrics"
	"rein/internal/protocol"
)

const (
	maxMessageSize = 64 << 10
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// hub tracks open connections so shutdown can close them
type hub struct {
	server    *Server
	clients   map[*wsClient]struct{}
	clientsMu sync.Mutex
}

// wsClient is one connected trackpad
type wsClient struct {
	hub  *hub
	id   string
	ip   string
	conn *websocket.Conn
	send chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newHub(s *Server) *hub {
	return &hub{server: s, clients: make(map[*wsClient]struct{})}
}

func (h *hub) add(c *wsClient) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.server.metrics.ConnectionOpened()
	log.Printf("WS: Client %s connected from %s. Total clients: %d", c.id, c.ip, total)
}

func (h *hub) remove(c *wsClient) {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.clientsMu.Unlock()

	if ok {
		h.server.metrics.ConnectionClosed()
		log.Printf("WS: Client %s disconnected. Total clients: %d", c.id, total)
	}
}

func (h *hub) count() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.clientsMu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	// the request context ends when this handler returns
	ctx, cancel := context.WithCancel(context.Background())
	client := &wsClient{
		hub:    h,
		id:     uuid.NewString(),
		ip:     r.RemoteAddr,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	h.add(client)

	go client.writePump()
	go client.readPump()
}

// close ends both pumps; it is safe to call more than once
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
		c.hub.remove(c)
	})
}

// readPump decodes frames and submits them in arrival order
func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error from %s: %v", c.id, err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.hub.server.metrics.Dropped(dropReason(err))
			log.Printf("WS: Dropping frame from %s: %v", c.id, err)
			continue
		}

		if err := c.hub.server.submitter.Submit(c.ctx, msg, c.reply); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("WS: Submit failed for %s: %v", c.id, err)
			}
			return
		}
	}
}

// writePump writes replies and keepalive pings
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// reply queues msg without blocking the dispatcher. Replies to a closed or
// saturated connection are dropped.
func (c *wsClient) reply(msg protocol.Message) {
	if c.ctx.Err() != nil {
		return
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		log.Printf("WS: Failed to encode %s reply: %v", msg.Type(), err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.hub.server.metrics.Dropped(metrics.ReasonBackpressure)
		log.Printf("WS: Send buffer full for %s, dropping %s", c.id, msg.Type())
	}
}

func dropReason(err error) string {
	if errors.Is(err, protocol.ErrIncomplete) || errors.Is(err, protocol.ErrInvalidField) {
		return metrics.ReasonIncomplete
	}
	return metrics.ReasonMalformed
}
