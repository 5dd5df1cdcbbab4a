// Package websocket streams state machine transitions to browser and tool clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/garyjia/recordlight/internal/domain/event"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

// Message is one transition pushed to every connected client
type Message struct {
	Type      string             `json:"type"`
	EventID   string             `json:"event_id"`
	Source    event.Source       `json:"source"`
	Input     statemachine.Input `json:"input"`
	Action    string             `json:"action"`
	From      statemachine.State `json:"from"`
	To        statemachine.State `json:"to"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// HubConfig tunes per-client buffering and keepalive
type HubConfig struct {
	// SendBuffer is how many messages may wait for a client before it is dropped
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultHubConfig returns the default hub settings
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   32,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type client struct {
	conn   *gws.Conn
	remote string
	send   chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans transitions out to websocket clients. A client whose buffer is
// full is disconnected rather than slowing the dispatch loop.
type Hub struct {
	config   HubConfig
	upgrader gws.Upgrader
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.SendBuffer < 1 {
		config.SendBuffer = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultHubConfig().PingInterval
	}
	return &Hub{
		config: config,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

// Observe has the engine observer signature; subscribe it to receive every result
func (h *Hub) Observe(evt *event.Event, res statemachine.Result) {
	msg := Message{
		Type:      "transition",
		Input:     res.Input,
		Action:    res.Action.String(),
		From:      res.From,
		To:        res.To,
		Success:   res.Success,
		Timestamp: h.now(),
	}
	if evt != nil {
		msg.EventID = evt.ID
		msg.Source = evt.Source
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode transition message", zap.Error(err))
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow websocket client", zap.String("remote", c.remote))
			delete(h.clients, c)
			c.close()
		}
	}
}

// ServeHTTP upgrades the request and streams messages until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, remote: conn.RemoteAddr().String(), send: make(chan []byte, h.config.SendBuffer)}
	if !h.add(c) {
		_ = conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseGoingAway, "shutting down"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}
	defer h.wg.Done()

	h.logger.Info("Websocket client connected", zap.String("remote", c.remote))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	h.readPump(c)
	h.remove(c)
	<-done

	h.logger.Info("Websocket client disconnected", zap.String("remote", c.remote))
}

// readPump discards client frames; it exists to process control frames and notice disconnects
func (h *Hub) readPump(c *client) {
	wait := 2 * h.config.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage,
					gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Start makes the hub accept clients again after Stop
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()
	return nil
}

// Stop disconnects every client and waits for their handlers to return
func (h *Hub) Stop() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// Name returns the worker name
func (h *Hub) Name() string {
	return "EventHub"
}
