package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palontologist/price-oracles/pkg/logging"
	"github.com/palontologist/price-oracles/pkg/metrics"
	"github.com/palontologist/price-oracles/pkg/server/sources"
)

// WebSocketServer handles WebSocket connections for real-time quote streaming.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	// Client management
	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	// Quote updates channel
	updates chan []sources.NormalizedQuote

	// Server control
	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn          *websocket.Conn
	send          chan []byte
	server        *WebSocketServer
	subscribedAll bool
	subscribed    map[sources.Commodity]bool
	mu            sync.RWMutex
}

// ClientMessage represents a client control frame.
type ClientMessage struct {
	Type        string   `json:"type"`        // "subscribe", "unsubscribe", "ping"
	Commodities []string `json:"commodities"` // Canonical names or aliases
}

// QuoteUpdateMessage is sent to clients after each successful chain run.
type QuoteUpdateMessage struct {
	Type      string                    `json:"type"`      // "quote_update"
	Timestamp string                    `json:"timestamp"` // ISO 8601 timestamp
	Quotes    []sources.NormalizedQuote `json:"quotes"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan []sources.NormalizedQuote, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the WebSocket server.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start broadcast goroutine
	go s.broadcastUpdates()

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	// Wait for context cancellation
	<-s.ctx.Done()

	// Graceful shutdown with timeout based on parent context
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// SendUpdate sends a quote batch to all connected clients.
func (s *WebSocketServer) SendUpdate(quotes []sources.NormalizedQuote) {
	select {
	case s.updates <- quotes:
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping quote update")
	}
}

// handleWebSocket handles new WebSocket connections.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		server:        s,
		subscribedAll: true, // Subscribe to all by default
		subscribed:    make(map[sources.Commodity]bool),
	}

	s.registerClient(client)

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

// registerClient adds a client to the server.
func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	metrics.RecordWebSocketConnect()
}

// unregisterClient removes a client from the server.
func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
		metrics.RecordWebSocketDisconnect()
	}
}

// broadcastUpdates broadcasts quote updates to all clients.
func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case quotes := <-s.updates:
			s.broadcast(quotes)
		}
	}
}

// broadcast sends a quote update to all subscribed clients.
func (s *WebSocketServer) broadcast(quotes []sources.NormalizedQuote) {
	if len(quotes) == 0 {
		return
	}

	message := QuoteUpdateMessage{
		Type:      "quote_update",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Quotes:    quotes,
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal quote update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(quotes) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Commodities)
	case "unsubscribe":
		c.unsubscribe(msg.Commodities)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe subscribes to specific commodities. Names are alias-resolved;
// unknown names are ignored.
func (c *WebSocketClient) subscribe(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(names) == 0 || (len(names) == 1 && names[0] == "*") {
		c.subscribedAll = true
		c.subscribed = make(map[sources.Commodity]bool)
		c.server.logger.Debug("Client subscribed to all commodities")
		return
	}

	c.subscribedAll = false
	for _, name := range names {
		commodity, err := sources.ParseCommodity(name)
		if err != nil {
			c.server.logger.Debug("Ignoring unknown subscription", "name", name)
			continue
		}
		c.subscribed[commodity] = true
	}

	c.server.logger.Debug("Client subscribed", "commodities", names)
}

// unsubscribe unsubscribes from specific commodities.
func (c *WebSocketClient) unsubscribe(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(names) == 0 || (len(names) == 1 && names[0] == "*") {
		c.subscribedAll = false
		c.subscribed = make(map[sources.Commodity]bool)
		return
	}

	for _, name := range names {
		commodity, err := sources.ParseCommodity(name)
		if err != nil {
			continue
		}
		delete(c.subscribed, commodity)
	}

	c.server.logger.Debug("Client unsubscribed", "commodities", names)
}

// shouldReceive checks if the client should receive this quote update.
func (c *WebSocketClient) shouldReceive(quotes []sources.NormalizedQuote) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}

	// Check if any quote matches the subscription
	for _, q := range quotes {
		if c.subscribed[q.Commodity] {
			return true
		}
	}

	return false
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
