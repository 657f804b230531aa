package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Per-client queue; slow clients are dropped when it fills up.
	sendBuffer = 16
)

// Message types pushed to the browser.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// UpdateMessage is the JSON document pushed over the live reload socket.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Hash      string    `json:"hash,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one connected browser tab.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	client.readPump()
}

// runHub owns the clients map. It exits when the server shuts down.
func (s *Server) runHub() {
	for {
		select {
		case client := <-s.register:
			s.clientsMutex.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.clientsMutex.Unlock()
			s.logger.Debug(context.Background(), "Client connected", "clients", count)

		case client := <-s.unregister:
			s.clientsMutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientsMutex.Unlock()

		case message := <-s.broadcast:
			s.clientsMutex.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.clientsMutex.Unlock()

		case <-s.done:
			s.clientsMutex.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientsMutex.Unlock()
			return
		}
	}
}

// Broadcast queues msg for every connected client.
func (s *Server) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode update message")
		return
	}

	select {
	case s.broadcast <- data:
	case <-s.done:
	}
}

// ClientCount returns the number of connected live reload clients.
func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// readPump drains the connection so control frames are processed. The
// browser never sends anything meaningful.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
