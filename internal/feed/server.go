// Package feed exposes a session to external renderers: a WebSocket stream
// of bus events, a JSON state snapshot and Prometheus metrics.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/logging"
	"github.com/normanking/daymind/internal/session"
)

const (
	EventsEndpoint  = "/events"
	StateEndpoint   = "/state"
	MetricsEndpoint = "/metrics"
	HealthEndpoint  = "/health"
	LogsEndpoint    = "/logs"

	// SnapshotFrame is the first frame every new client receives
	SnapshotFrame = "session.snapshot"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
	defaultLogs    = 100
)

// StateProvider supplies the snapshot served on /state
type StateProvider interface {
	Snapshot() session.Snapshot
}

// LogSource supplies the recent log lines served on /logs
type LogSource interface {
	GetHistory(limit int) []logging.LogEntry
	GetLogPath() string
}

// Config configures the feed server
type Config struct {
	Addr           string
	MetricsEnabled bool
	Logs           LogSource // nil disables /logs
}

// Frame is one JSON message on the event stream
type Frame struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server streams session events to connected clients
type Server struct {
	config   Config
	state    StateProvider
	eventBus *bus.EventBus
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	server   *http.Server
	listener net.Listener
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a feed server; call Start to listen or mount Handler
func NewServer(cfg Config, state StateProvider, eventBus *bus.EventBus, logger zerolog.Logger) *Server {
	return &Server{
		config:   cfg,
		state:    state,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "feed").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local tool; any renderer on the machine may attach
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the feed's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(EventsEndpoint, s.handleEvents)
	mux.HandleFunc(StateEndpoint, s.handleState)
	mux.HandleFunc(HealthEndpoint, s.handleHealth)
	if s.config.Logs != nil {
		mux.HandleFunc(LogsEndpoint, s.handleLogs)
	}
	if s.config.MetricsEnabled {
		mux.Handle(MetricsEndpoint, promhttp.Handler())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("feed server already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("feed listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Feed server stopped")
		}
	}(s.server)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Feed server listening")
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes every client and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	// hijacked connections are not tracked by Shutdown
	for _, c := range clients {
		c.close()
	}
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("feed shutdown: %w", err)
	}
	return nil
}

// ClientCount returns the number of connected stream clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	if s.state != nil {
		if data, err := json.Marshal(Frame{Type: SnapshotFrame, Data: s.state.Snapshot(), Timestamp: time.Now()}); err == nil {
			c.send <- data
		}
	}

	unsubscribe := s.eventBus.SubscribeOrdered(bus.AllEventTypes, func(event bus.Event) {
		data, err := json.Marshal(Frame{Type: string(event.Type), Data: event.Data, Timestamp: event.Timestamp})
		if err != nil {
			s.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal event")
			return
		}
		if c.enqueue(data) {
			s.logger.Debug().Msg("Dropping slow feed client")
		}
	})

	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug().Int("clients", count).Msg("Feed client connected")

	go c.writePump()
	c.readPump()

	unsubscribe()
	c.close()
	s.mu.Lock()
	delete(s.clients, c)
	count = len(s.clients)
	s.mu.Unlock()
	s.logger.Debug().Int("clients", count).Msg("Feed client disconnected")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.state == nil {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write state")
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := defaultLogs
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	resp := struct {
		Path    string             `json:"path,omitempty"`
		Entries []logging.LogEntry `json:"entries"`
	}{
		Path:    s.config.Logs.GetLogPath(),
		Entries: s.config.Logs.GetHistory(limit),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write logs")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Clients int    `json:"clients"`
	}{
		Status:  "healthy",
		Service: "daymind-feed",
		Clients: s.ClientCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

// enqueue queues data for the client and reports whether this call dropped
// a client whose buffer was full. Frames for a closed client are discarded.
func (c *client) enqueue(data []byte) (dropped bool) {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return false
	case <-c.done:
		return false
	default:
		c.close()
		return true
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump only watches for the peer going away
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
