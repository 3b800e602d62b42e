// Package relay implements the signaling relay: every connected peer gets an
// identity and every message it sends is forwarded to all other peers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/duet/internal/protocol"
	"github.com/1ureka/duet/internal/util"
)

const wsWriteWait = 5 * time.Second

// Server is the WebSocket relay used for signaling.
type Server struct {
	path         string
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	listener net.Listener
	http     *http.Server

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// write sends one frame, serialized per connection.
func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// NewServer creates a relay serving WebSocket upgrades on path. A positive
// pingInterval enables keepalive pings; peers that stop answering are dropped.
func NewServer(path string, pingInterval time.Duration) *Server {
	return &Server{
		path:         path,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Handler returns the HTTP handler serving the relay endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWS)
	return mux
}

// Start begins listening on addr.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	s.listener = listener
	s.http = &http.Server{Handler: s.Handler()}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("relay stopped: %v", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected peers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close stops accepting connections and disconnects every peer.
func (s *Server) Close() error {
	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = s.http.Shutdown(ctx)
	}

	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{id: uuid.NewString(), conn: conn}
	total := s.add(c)
	defer s.remove(c)
	util.LogInfo("peer %s joined (%d connected)", c.id, total)

	hello, err := protocol.Encode(protocol.Identity{ID: c.id})
	if err != nil {
		util.LogError("failed to encode identity: %v", err)
		return
	}
	if err := c.write(websocket.TextMessage, hello); err != nil {
		return
	}

	if s.pingInterval > 0 {
		stop := make(chan struct{})
		defer close(stop)
		s.keepalive(c, stop)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		util.LogDebug("received from %s: %s", c.id, data)
		s.broadcast(c, data)
	}
}

// keepalive pings c until stop is closed. Each pong extends the read deadline.
func (s *Server) keepalive(c *client, stop <-chan struct{}) {
	deadline := 2 * s.pingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
				c.mu.Unlock()
				if err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// broadcast forwards data to every peer except its sender. Peers whose
// writes fail are disconnected.
func (s *Server) broadcast(from *client, data []byte) {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for id, c := range s.clients {
		if id != from.id {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			util.LogWarning("dropping client %s: %v", c.id, err)
			s.remove(c)
			c.conn.Close()
			continue
		}
		util.LogDebug("forwarded to %s", c.id)
	}
}

func (s *Server) add(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
	return len(s.clients)
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	total := len(s.clients)
	s.mu.Unlock()

	if ok {
		util.LogInfo("peer %s left (%d connected)", c.id, total)
	}
}
