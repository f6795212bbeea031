package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cx-tal-miterani/flight-ticketing/internal/logger"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSeatAssigned MessageType = "seat_assigned"
	MessageTypeTicketsSold  MessageType = "tickets_sold"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// SeatUpdate is one seat that changed on a flight's aircraft
type SeatUpdate struct {
	Seat      string `json:"seat"`
	FareClass string `json:"fareClass"`
	TicketID  int64  `json:"ticketId"`
}

// Message represents a WebSocket message
type Message struct {
	Type        MessageType  `json:"type"`
	FlightID    int64        `json:"flightId"`
	Seats       []SeatUpdate `json:"seats,omitempty"`
	TicketsSold int          `json:"ticketsSold,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

// Client represents a WebSocket client connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	flightID int64
}

// Hub fans out seat-map changes to the clients watching each flight
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
	upgrader   websocket.Upgrader
}

// NewHub creates a new Hub. Call Run to start delivering messages.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		log:        log.WithComponent("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run is the hub's main loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.flightID] == nil {
				h.clients[client.flightID] = make(map[*Client]bool)
			}
			h.clients[client.flightID][client] = true
			total := len(h.clients[client.flightID])
			h.mu.Unlock()
			h.log.Debug("client registered", slog.Int64("flight_id", client.flightID), slog.Int("total", total))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.Error("failed to marshal message", slog.String("error", err.Error()))
				continue
			}

			h.mu.RLock()
			var slow []*Client
			for client := range h.clients[message.FlightID] {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.flightID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.flightID)
	}
	h.log.Debug("client unregistered", slog.Int64("flight_id", client.flightID), slog.Int("remaining", len(clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for flightID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, flightID)
	}
}

// ServeWS upgrades the request and subscribes the connection to flightID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, flightID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		flightID: flightID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastSeatAssigned tells clients watching a flight that a seat was taken
func (h *Hub) BroadcastSeatAssigned(flightID, ticketID int64, seat, fareClass string) {
	h.enqueue(&Message{
		Type:     MessageTypeSeatAssigned,
		FlightID: flightID,
		Seats: []SeatUpdate{{
			Seat:      seat,
			FareClass: fareClass,
			TicketID:  ticketID,
		}},
		Timestamp: time.Now().UnixMilli(),
	})
}

// BroadcastTicketsSold tells clients watching a flight that tickets were sold
func (h *Hub) BroadcastTicketsSold(flightID int64, count int) {
	h.enqueue(&Message{
		Type:        MessageTypeTicketsSold,
		FlightID:    flightID,
		TicketsSold: count,
		Timestamp:   time.Now().UnixMilli(),
	})
}

// enqueue drops the message when the broadcast buffer is full so callers on
// the request path never block
func (h *Hub) enqueue(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast buffer full, dropping message",
			slog.String("type", string(msg.Type)), slog.Int64("flight_id", msg.FlightID))
	}
}

// GetClientCount returns the number of clients watching a flight
func (h *Hub) GetClientCount(flightID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[flightID])
}
