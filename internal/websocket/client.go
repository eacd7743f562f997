package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"plutochat/internal/config"
	"plutochat/internal/models"
	"plutochat/internal/wire"

	"github.com/gorilla/websocket"
)

// PublishFunc forwards a message published on a room topic into the
// message pipeline. The room is already normalized.
type PublishFunc func(ctx context.Context, room string, msg wire.Message) error

// Client is a middleman between a websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Authenticated username for this connection.
	Username string

	// The room topic this connection is currently subscribed to; a
	// connection holds at most one subscription at a time.
	room string

	publish PublishFunc
}

// readPump pumps frames from the websocket connection into the hub and the
// publish pipeline.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error (client %s): %v", c.Username, err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame wire.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Malformed frames are dropped, never fatal to the connection.
			log.Printf("error: cannot parse frame from client %s: %v, raw: %s", c.Username, err, string(raw))
			continue
		}

		room := models.RoomSlug(frame.Room)
		if room == "" {
			log.Printf("warning: client %s sent a frame without a room", c.Username)
			continue
		}

		switch frame.Action {
		case wire.ActionSubscribe:
			// One topic per connection: switching rooms drops the old one.
			if c.room != "" && c.room != room {
				c.hub.unsubscribe <- subscription{client: c, room: c.room}
			}
			c.room = room
			c.hub.subscribe <- subscription{client: c, room: room}

		case wire.ActionUnsubscribe:
			if c.room == room {
				c.room = ""
			}
			c.hub.unsubscribe <- subscription{client: c, room: room}

		case wire.ActionPublish:
			if frame.Message == nil {
				log.Printf("warning: client %s published an empty frame to %s", c.Username, room)
				continue
			}
			msg := *frame.Message
			// The authenticated identity wins over whatever the payload says.
			msg.Sender = c.Username
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			if c.publish != nil {
				if err := c.publish(context.Background(), room, msg); err != nil {
					log.Printf("error: publish from client %s to room %s failed: %v", c.Username, room, err)
				}
			}

		default:
			log.Printf("warning: client %s sent unknown action %q", c.Username, frame.Action)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeConnection upgrades an HTTP request and runs the client's pumps.
func ServeConnection(hub *Hub, publish PublishFunc, username string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ServeConnection - upgrade failed:", err)
		return
	}
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		Username: username,
		publish:  publish,
	}
	client.hub.register <- client

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	log.Printf("client connected: %s", username)
}
