package client

import (
	"context"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"plutochat/internal/wire"
)

// ChannelState is the connection lifecycle state of a Channel.
type ChannelState int32

const (
	StateDisconnected ChannelState = iota
	StateConnecting
	StateConnected
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// DefaultReconnectDelay is the pause between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// MessageHandler receives each raw frame read from the channel.
type MessageHandler func(raw []byte)

// Channel maintains a websocket subscription to a single room. Once
// activated it reconnects forever on any failure, resubscribing after each
// successful dial, until Deactivate is called.
type Channel struct {
	brokerURL string
	token     string
	room      string
	onMessage MessageHandler

	reconnectDelay time.Duration
	maxBackoff     time.Duration

	dialer *websocket.Dialer
	state  atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel creates an inactive Channel for the given room. brokerURL is
// the websocket endpoint, e.g. ws://localhost:8080/ws.
func NewChannel(brokerURL, token, room string, onMessage MessageHandler) *Channel {
	return &Channel{
		brokerURL:      brokerURL,
		token:          token,
		room:           room,
		onMessage:      onMessage,
		reconnectDelay: DefaultReconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// Activate starts the connect loop. Calling it on an active channel is a
// no-op. The loop stops only when ctx is cancelled or Deactivate is called.
func (c *Channel) Activate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Deactivate tears the channel down and waits until the connect loop has
// fully stopped. It is safe to call more than once and on a channel that
// was never activated.
func (c *Channel) Deactivate() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	conn := c.conn
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	c.state.Store(int32(StateDisconnected))
}

// Publish sends a message frame over the live connection. It fails with
// ErrNotConnected unless the channel is currently connected.
func (c *Channel) Publish(msg wire.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if c.State() != StateConnected || conn == nil {
		return ErrNotConnected
	}
	frame := wire.Frame{Action: wire.ActionPublish, Room: c.room, Message: &msg}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(frame)
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.state.Store(int32(StateDisconnected))
			return
		}
		c.state.Store(int32(StateConnecting))
		conn, err := c.dial(ctx)
		if err != nil {
			c.state.Store(int32(StateDisconnected))
			log.Printf("channel: connect to %s failed: %v", c.brokerURL, err)
			attempt++
			if !c.sleep(ctx, c.delayFor(attempt)) {
				return
			}
			continue
		}
		attempt = 0

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// Unblock the read loop when teardown races the dial.
		connDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-connDone:
			}
		}()

		if err := c.subscribe(conn); err != nil {
			log.Printf("channel: subscribe to %s failed: %v", c.room, err)
		} else {
			c.state.Store(int32(StateConnected))
			c.readLoop(ctx, conn)
		}

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		close(connDone)
		conn.Close()
		c.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return
		}
		attempt++
		if !c.sleep(ctx, c.delayFor(attempt)) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.brokerURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func (c *Channel) subscribe(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(wire.Frame{Action: wire.ActionSubscribe, Room: c.room})
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(raw)
		}
	}
}

func (c *Channel) delayFor(attempt int) time.Duration {
	if c.maxBackoff <= 0 {
		return c.reconnectDelay
	}
	delay := c.reconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	if delay > c.maxBackoff {
		return c.maxBackoff
	}
	return delay
}

func (c *Channel) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
