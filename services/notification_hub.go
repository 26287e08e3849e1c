// The hub owns the map of live connections. Connections are added and removed
// through the register/unregister channels and payloads for a user go through
// deliver, so only Run ever touches the map.
package services

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pongs and close frames.
	maxMessageSize = 512
)

type userPayload struct {
	userID  int
	payload []byte
}

type NotificationHub struct {
	clients    map[int]map[*HubClient]bool
	register   chan *HubClient
	unregister chan *HubClient
	deliver    chan userPayload
	stopChan   chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients:    make(map[int]map[*HubClient]bool),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		deliver:    make(chan userPayload, 256),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *NotificationHub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*HubClient]bool)
			}
			h.clients[client.UserID][client] = true
			log.Debugf("[Hub] User %d connected. Connections: %d", client.UserID, len(h.clients[client.UserID]))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.deliver:
			for client := range h.clients[msg.userID] {
				select {
				case client.Send <- msg.payload:
				default:
					// Slow consumer, drop it.
					h.remove(client)
				}
			}

		case <-h.stopChan:
			for _, conns := range h.clients {
				for client := range conns {
					close(client.Send)
				}
			}
			h.clients = make(map[int]map[*HubClient]bool)
			return
		}
	}
}

func (h *NotificationHub) remove(client *HubClient) {
	conns, ok := h.clients[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
}

// Register adds a connection. It returns false once the hub has stopped.
func (h *NotificationHub) Register(client *HubClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopChan:
		return false
	}
}

func (h *NotificationHub) Unregister(client *HubClient) {
	select {
	case h.unregister <- client:
	case <-h.stopChan:
	}
}

func (h *NotificationHub) SendToUser(userID int, payload []byte) {
	select {
	case h.deliver <- userPayload{userID: userID, payload: payload}:
	case <-h.stopChan:
	default:
		log.Printf("[Hub] Delivery buffer full, dropping payload for user %d", userID)
	}
}

func (h *NotificationHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		<-h.done
	})
}

// HubClient is one websocket connection of a user.
type HubClient struct {
	Hub    *NotificationHub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int
}

func NewHubClient(hub *NotificationHub, conn *websocket.Conn, userID int) *HubClient {
	return &HubClient{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 32),
		UserID: userID,
	}
}

// ReadPump only exists to process control frames and notice disconnects.
func (c *HubClient) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Hub] Unexpected close for user %d: %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *HubClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
