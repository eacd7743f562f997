package client

import (
	"context"
	"io"
	"sync"
	"time"

	"plutochat/internal/wire"
)

// SessionOption configures a RoomSession.
type SessionOption func(*RoomSession)

// WithDedupStrategy swaps the duplicate-detection strategy used when
// merging the live stream into the history.
func WithDedupStrategy(s DedupStrategy) SessionOption {
	return func(rs *RoomSession) { rs.strategy = s }
}

// WithReconnectDelay overrides the fixed pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) SessionOption {
	return func(rs *RoomSession) { rs.reconnectDelay = d }
}

// WithBackoff switches reconnects from a fixed delay to exponential
// backoff capped at max.
func WithBackoff(max time.Duration) SessionOption {
	return func(rs *RoomSession) { rs.maxBackoff = max }
}

// WithHandler registers a callback invoked for every message that survives
// reconciliation, in receipt order.
func WithHandler(fn func(wire.Message)) SessionOption {
	return func(rs *RoomSession) { rs.onMessage = fn }
}

// RoomSession ties together the snapshot fetch, the live channel, the
// reconciler and the outbound dispatcher for one room. Join brings it up,
// Leave tears it down.
type RoomSession struct {
	api      *Client
	broker   string
	token    string
	username string
	room     string

	strategy       DedupStrategy
	reconnectDelay time.Duration
	maxBackoff     time.Duration
	onMessage      func(wire.Message)

	reconciler *Reconciler
	channel    *Channel
	dispatcher *Dispatcher
	uploader   *Uploader

	mu      sync.Mutex
	members []string
	online  []string
	joined  bool
}

// NewRoomSession creates a session for room. api talks to the REST server,
// brokerURL is the websocket endpoint, and username is the sender stamped
// on outbound messages.
func NewRoomSession(api *Client, brokerURL, token, username, room string, opts ...SessionOption) *RoomSession {
	rs := &RoomSession{
		api:            api,
		broker:         brokerURL,
		token:          token,
		username:       username,
		room:           room,
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(rs)
	}
	rs.reconciler = NewReconciler(rs.strategy)
	rs.uploader = NewUploader(api)
	return rs
}

// Join fetches the room snapshot and, only once that succeeds, activates
// the live channel. When the room does not exist the channel is never
// opened and ErrRoomNotFound is returned.
func (rs *RoomSession) Join(ctx context.Context) error {
	rs.mu.Lock()
	if rs.joined {
		rs.mu.Unlock()
		return nil
	}
	rs.mu.Unlock()

	snapshot, err := rs.api.FetchRoom(ctx, rs.room)
	if err != nil {
		return err
	}

	rs.mu.Lock()
	rs.reconciler.Load(snapshot.Messages)
	rs.members = snapshot.Members
	rs.online = snapshot.Online
	rs.channel = NewChannel(rs.broker, rs.token, rs.room, rs.ingest)
	rs.channel.reconnectDelay = rs.reconnectDelay
	rs.channel.maxBackoff = rs.maxBackoff
	rs.dispatcher = NewDispatcher(rs.channel, rs.username)
	rs.joined = true
	channel := rs.channel
	rs.mu.Unlock()

	channel.Activate(ctx)
	return nil
}

func (rs *RoomSession) ingest(raw []byte) {
	msg, added, err := rs.reconciler.Ingest(raw)
	if err != nil || !added {
		return
	}
	if rs.onMessage != nil {
		rs.onMessage(msg)
	}
}

// Send publishes a text message to the room.
func (rs *RoomSession) Send(content string) error {
	rs.mu.Lock()
	dispatcher := rs.dispatcher
	rs.mu.Unlock()
	if dispatcher == nil {
		return ErrNotConnected
	}
	return dispatcher.Send(content)
}

// Upload sends a photo to the room. The image message arrives over the
// live channel once the server has stored and broadcast it.
func (rs *RoomSession) Upload(ctx context.Context, fileName, mimeType string, file io.Reader) error {
	return rs.uploader.Upload(ctx, rs.room, fileName, mimeType, file)
}

// Uploading reports whether a photo upload is in flight.
func (rs *RoomSession) Uploading() bool {
	return rs.uploader.Busy()
}

// Messages returns the reconciled message sequence, oldest first.
func (rs *RoomSession) Messages() []wire.Message {
	return rs.reconciler.Messages()
}

// Members returns the room membership from the snapshot.
func (rs *RoomSession) Members() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.members...)
}

// Online returns the usernames that were online at snapshot time.
func (rs *RoomSession) Online() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.online...)
}

// State returns the live channel state, StateDisconnected before Join.
func (rs *RoomSession) State() ChannelState {
	rs.mu.Lock()
	channel := rs.channel
	rs.mu.Unlock()
	if channel == nil {
		return StateDisconnected
	}
	return channel.State()
}

// Leave tears down the live channel. It is idempotent and safe to call on
// a session that never joined.
func (rs *RoomSession) Leave() {
	rs.mu.Lock()
	channel := rs.channel
	rs.joined = false
	rs.mu.Unlock()
	if channel != nil {
		channel.Deactivate()
	}
}
