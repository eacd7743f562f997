package client

import (
	"strings"
	"time"

	"plutochat/internal/wire"
)

// publisher is satisfied by Channel.
type publisher interface {
	State() ChannelState
	Publish(msg wire.Message) error
}

// Dispatcher sends outbound text messages over the live channel. It never
// inserts the message locally: the message shows up in the sequence when
// the server echoes it back, like everyone else's.
type Dispatcher struct {
	channel publisher
	sender  string
}

// NewDispatcher creates a Dispatcher publishing as sender.
func NewDispatcher(channel publisher, sender string) *Dispatcher {
	return &Dispatcher{channel: channel, sender: sender}
}

// Send publishes content to the room. Whitespace-only content is rejected
// with ErrEmptyMessage, and sending while the channel is not connected
// fails with ErrNotConnected.
func (d *Dispatcher) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if d.channel.State() != StateConnected {
		return ErrNotConnected
	}
	msg := wire.Message{
		Sender:    d.sender,
		Content:   content,
		Type:      wire.TextMessage,
		Timestamp: time.Now(),
	}
	return d.channel.Publish(msg)
}
