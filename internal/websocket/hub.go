package websocket

import (
	"encoding/json"
	"log"

	"plutochat/internal/wire"
)

// TopicNotifier observes subscription changes, e.g. to maintain presence.
type TopicNotifier interface {
	Joined(room, username string)
	Left(room, username string)
}

// subscription pairs a client with a room topic.
type subscription struct {
	client *Client
	room   string
}

// roomMessage is a payload addressed to every subscriber of a room topic.
type roomMessage struct {
	room    string
	payload []byte
}

// Hub maintains the set of active clients and the room topics they are
// subscribed to, and broadcasts messages to a topic's subscribers —
// including the publisher, which is how senders see their own messages.
type Hub struct {
	// Connected clients. A client's send channel is closed exactly once,
	// when it leaves this set.
	clients map[*Client]bool

	// Subscribers per room topic.
	rooms map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription

	// Messages to deliver to a room topic.
	deliver chan roomMessage

	notifier TopicNotifier
}

// NewHub creates a new Hub. notifier may be nil.
func NewHub(notifier TopicNotifier) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		deliver:     make(chan roomMessage, 256),
		notifier:    notifier,
	}
}

// DeliverRoomMessage hands a message to the hub for broadcast on the room's
// topic. The send is non-blocking so a slow hub cannot stall the caller
// (the Kafka fan-out consumer).
func (h *Hub) DeliverRoomMessage(room string, msg *wire.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error: cannot serialize message for room %s: %v", room, err)
		return
	}
	select {
	case h.deliver <- roomMessage{room: room, payload: payload}:
	default:
		log.Printf("warning: hub deliver channel full, dropping message for room %s", room)
	}
}

// Run starts the hub loop. It owns the clients and rooms maps; all mutation
// happens here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			h.removeClient(client)

		case sub := <-h.subscribe:
			if !h.clients[sub.client] {
				// Raced with disconnect; the subscription is moot.
				continue
			}
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*Client]bool)
			}
			h.rooms[sub.room][sub.client] = true
			if h.notifier != nil {
				h.notifier.Joined(sub.room, sub.client.Username)
			}
			log.Printf("client %s subscribed to room %s", sub.client.Username, sub.room)

		case sub := <-h.unsubscribe:
			h.dropSubscriber(sub.room, sub.client)

		case msg := <-h.deliver:
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.payload:
				default:
					// Send buffer full: the client is slow or gone.
					log.Printf("warning: send buffer full for %s in room %s, dropping client", client.Username, msg.room)
					h.removeClient(client)
				}
			}
		}
	}
}

// removeClient drops the client from every topic and closes its send
// channel. Safe to call for a client that already left.
func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}
	for room, subscribers := range h.rooms {
		if subscribers[client] {
			h.dropSubscriber(room, client)
		}
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) dropSubscriber(room string, client *Client) {
	subscribers, ok := h.rooms[room]
	if !ok || !subscribers[client] {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.rooms, room)
	}
	if h.notifier != nil {
		h.notifier.Left(room, client.Username)
	}
	log.Printf("client %s unsubscribed from room %s", client.Username, room)
}
