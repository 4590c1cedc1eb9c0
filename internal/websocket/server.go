package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/internal/render"
	"github.com/yegors/flight-tracker/internal/stats"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Message types
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Message is the envelope pushed to every client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotEvent is the payload of a snapshot message
type SnapshotEvent struct {
	Timestamp int64                `json:"timestamp"`
	Time      string               `json:"time"`
	Summary   stats.SummaryMetrics `json:"summary"`
	Aircraft  []render.TableRow    `json:"aircraft"`
}

// ErrorEvent is the payload of an error message
type ErrorEvent struct {
	At    time.Time `json:"at"`
	Error string    `json:"error"`
}

// Server upgrades dashboard connections and broadcasts poll results to them
type Server struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewServer creates a broadcaster. An empty allowedOrigins list accepts any
// origin.
func NewServer(allowedOrigins []string, logger *logger.Logger) *Server {
	s := &Server{
		logger:  logger.Named("websocket"),
		clients: make(map[*Client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the request and registers the client
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Warn("WebSocket upgrade failed", logger.Error(err))
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: s.logger.With(logger.String("remote_addr", conn.RemoteAddr().String())),
	}
	s.register(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()

	c.logger.Debug("WebSocket client registered", logger.Int("clients", n))
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to every client. Clients whose buffer is full are
// disconnected.
func (s *Server) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			c.logger.Warn("WebSocket client too slow, disconnecting")
			delete(s.clients, c)
			close(c.send)
		}
	}
	return nil
}

// OnSnapshot broadcasts the summary and table of a completed cycle
func (s *Server) OnSnapshot(_ context.Context, snap poller.Snapshot) error {
	return s.Broadcast(Message{
		Type: TypeSnapshot,
		Data: SnapshotEvent{
			Timestamp: snap.Timestamp,
			Time:      stats.FormatTimestamp(snap.Timestamp),
			Summary:   snap.Summary,
			Aircraft:  render.Table(snap.Records),
		},
	})
}

// OnFailure broadcasts the cause of a failed cycle
func (s *Server) OnFailure(_ context.Context, at time.Time, cause error) {
	if err := s.Broadcast(Message{Type: TypeError, Data: ErrorEvent{At: at, Error: cause.Error()}}); err != nil {
		s.logger.Error("Failed to broadcast failure", logger.Error(err))
	}
}

// Close disconnects every client
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
