package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/metrics"
)

// Transports
const (
	TransportWebSocket = "ws"
	TransportSSE       = "sse"
)

// Config controls per-connection behaviour
type Config struct {
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Client is one open connection. Frames are queued on a bounded buffer;
// a client whose buffer is full is disconnected rather than blocking the hub.
type Client struct {
	UserID    string
	Transport string

	rooms     []string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Send returns the queue of encoded frames for this client
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed when the hub drops the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Hub routes frames to clients by room
type Hub struct {
	logger *slog.Logger
	config Config
	now    func() time.Time

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub(config Config, logger *slog.Logger) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 32
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	return &Hub{
		logger: logger,
		config: config,
		now:    time.Now,
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to the given rooms
func (h *Hub) Register(userID, transport string, rooms []string) *Client {
	c := &Client{
		UserID:    userID,
		Transport: transport,
		rooms:     rooms,
		send:      make(chan []byte, h.config.SendBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	h.mu.Unlock()

	metrics.RealtimeConnectionOpened(transport)
	h.logger.Debug("Realtime client registered",
		slog.String("user_id", userID),
		slog.String("transport", transport),
		slog.Any("rooms", rooms),
	)

	return c
}

// Unregister removes the client from every room; safe to call more than once
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.detach(c)
	h.mu.Unlock()

	if removed {
		metrics.RealtimeConnectionClosed(c.Transport)
	}
	c.close()
}

// detach must be called with mu held
func (h *Hub) detach(c *Client) bool {
	removed := false
	for _, room := range c.rooms {
		members := h.rooms[room]
		if _, ok := members[c]; !ok {
			continue
		}
		removed = true
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	return removed
}

// Publish sends one frame to every client in any of rooms. A client present in
// several of the rooms receives it once. Returns the number of clients reached.
func (h *Hub) Publish(rooms []string, event string, data any) int {
	frame, err := encode(event, data, h.now())
	if err != nil {
		h.logger.Error("Failed to encode realtime frame", slog.Any("error", err))
		return 0
	}

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	var slow []*Client
	for c := range targets {
		select {
		case c.send <- frame:
			delivered++
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		h.logger.Warn("Dropping slow realtime client",
			slog.String("user_id", c.UserID),
			slog.String("transport", c.Transport),
		)
		h.Unregister(c)
	}

	return delivered
}

// RoomSize returns the number of clients in room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make(map[*Client]struct{})
	for _, members := range h.rooms {
		for c := range members {
			clients[c] = struct{}{}
		}
	}
	h.mu.Unlock()

	for c := range clients {
		h.Unregister(c)
	}
}
