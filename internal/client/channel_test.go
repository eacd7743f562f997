package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/wire"
)

type channelTestServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  []*websocket.Conn
	tokens []string
	frames []wire.Frame
}

func newChannelTestServer(t *testing.T) *channelTestServer {
	ts := &channelTestServer{t: t}
	ts.server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *channelTestServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ts.mu.Lock()
	ts.conns = append(ts.conns, conn)
	ts.tokens = append(ts.tokens, r.URL.Query().Get("token"))
	ts.mu.Unlock()

	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		ts.mu.Lock()
		ts.frames = append(ts.frames, frame)
		ts.mu.Unlock()
	}
}

func (ts *channelTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

func (ts *channelTestServer) connCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.conns)
}

func (ts *channelTestServer) lastConn() *websocket.Conn {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.conns) == 0 {
		return nil
	}
	return ts.conns[len(ts.conns)-1]
}

func (ts *channelTestServer) framesSeen() []wire.Frame {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]wire.Frame(nil), ts.frames...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestChannelConnectsAndSubscribes(t *testing.T) {
	ts := newChannelTestServer(t)

	ch := NewChannel(ts.wsURL(), "tok-123", "lobby", nil)
	ch.Activate(context.Background())
	defer ch.Deactivate()

	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })
	waitFor(t, 2*time.Second, func() bool { return len(ts.framesSeen()) >= 1 })

	frames := ts.framesSeen()
	require.NotEmpty(t, frames)
	assert.Equal(t, wire.ActionSubscribe, frames[0].Action)
	assert.Equal(t, "lobby", frames[0].Room)

	ts.mu.Lock()
	token := ts.tokens[0]
	ts.mu.Unlock()
	assert.Equal(t, "tok-123", token, "token travels as a query parameter")
}

func TestChannelDeliversMessages(t *testing.T) {
	ts := newChannelTestServer(t)

	var mu sync.Mutex
	var received []wire.Message
	handler := func(raw []byte) {
		var msg wire.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	}

	ch := NewChannel(ts.wsURL(), "tok", "lobby", handler)
	ch.Activate(context.Background())
	defer ch.Deactivate()

	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })

	payload, err := json.Marshal(wire.Message{Sender: "bob", Content: "hi", Type: wire.TextMessage, Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, ts.lastConn().WriteMessage(websocket.TextMessage, payload))

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})
	mu.Lock()
	assert.Equal(t, "bob", received[0].Sender)
	mu.Unlock()
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	ts := newChannelTestServer(t)

	ch := NewChannel(ts.wsURL(), "tok", "lobby", nil)
	ch.reconnectDelay = 50 * time.Millisecond
	ch.Activate(context.Background())
	defer ch.Deactivate()

	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })
	require.Equal(t, 1, ts.connCount())

	// Kill the connection server-side; the channel must come back on its
	// own and resubscribe.
	ts.lastConn().Close()

	waitFor(t, 3*time.Second, func() bool { return ts.connCount() == 2 })
	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })

	waitFor(t, 2*time.Second, func() bool {
		frames := ts.framesSeen()
		subs := 0
		for _, f := range frames {
			if f.Action == wire.ActionSubscribe {
				subs++
			}
		}
		return subs == 2
	})
}

func TestChannelRetriesWhileServerDown(t *testing.T) {
	// Dial against a closed port: the channel must keep cycling between
	// connecting and disconnected without giving up.
	ch := NewChannel("ws://127.0.0.1:1/ws", "tok", "lobby", nil)
	ch.reconnectDelay = 20 * time.Millisecond
	ch.Activate(context.Background())
	defer ch.Deactivate()

	time.Sleep(200 * time.Millisecond)
	assert.NotEqual(t, StateConnected, ch.State())

	ch.Deactivate()
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannelDeactivateIsIdempotent(t *testing.T) {
	ts := newChannelTestServer(t)

	ch := NewChannel(ts.wsURL(), "tok", "lobby", nil)
	ch.Activate(context.Background())
	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })

	ch.Deactivate()
	assert.Equal(t, StateDisconnected, ch.State())
	ch.Deactivate()
	ch.Deactivate()
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannelDeactivateWithoutActivate(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws", "tok", "lobby", nil)
	ch.Deactivate()
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannelPublishRequiresConnection(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws", "tok", "lobby", nil)
	err := ch.Publish(wire.Message{Sender: "alice", Content: "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannelPublishReachesServer(t *testing.T) {
	ts := newChannelTestServer(t)

	ch := NewChannel(ts.wsURL(), "tok", "lobby", nil)
	ch.Activate(context.Background())
	defer ch.Deactivate()

	waitFor(t, 2*time.Second, func() bool { return ch.State() == StateConnected })

	require.NoError(t, ch.Publish(wire.Message{Sender: "alice", Content: "hi", Type: wire.TextMessage, Timestamp: time.Now()}))

	waitFor(t, 2*time.Second, func() bool {
		for _, f := range ts.framesSeen() {
			if f.Action == wire.ActionPublish {
				return true
			}
		}
		return false
	})

	var publish *wire.Frame
	for _, f := range ts.framesSeen() {
		if f.Action == wire.ActionPublish {
			f := f
			publish = &f
			break
		}
	}
	require.NotNil(t, publish)
	assert.Equal(t, "lobby", publish.Room)
	require.NotNil(t, publish.Message)
	assert.Equal(t, "hi", publish.Message.Content)
}

func TestChannelBackoffDelays(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws", "tok", "lobby", nil)
	ch.reconnectDelay = time.Second

	// Fixed delay when no backoff cap is set.
	assert.Equal(t, time.Second, ch.delayFor(1))
	assert.Equal(t, time.Second, ch.delayFor(5))

	ch.maxBackoff = 4 * time.Second
	assert.Equal(t, time.Second, ch.delayFor(1))
	assert.Equal(t, 2*time.Second, ch.delayFor(2))
	assert.Equal(t, 4*time.Second, ch.delayFor(3))
	assert.Equal(t, 4*time.Second, ch.delayFor(10))
}
