package client

import (
	"encoding/json"
	"sync"
	"time"

	"plutochat/internal/wire"
)

// DefaultDedupWindow is the timestamp tolerance of the window heuristic.
const DefaultDedupWindow = time.Second

// DedupStrategy decides whether an incoming message is a duplicate delivery
// of an existing one.
type DedupStrategy interface {
	Matches(existing, incoming wire.Message) bool
}

// WindowDedup treats messages as identical when sender and content match and
// the timestamps lie within Window of each other. This is the legacy
// behavior: without a server-assigned id it is the best available key, and
// it knowingly collapses a legitimate rapid double-send of the same text.
type WindowDedup struct {
	Window time.Duration
}

// Matches implements DedupStrategy.
func (d WindowDedup) Matches(existing, incoming wire.Message) bool {
	window := d.Window
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if existing.Sender != incoming.Sender || existing.Content != incoming.Content {
		return false
	}
	delta := existing.Timestamp.Sub(incoming.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta < window
}

// IDDedup keys on the server-assigned message id. Messages without an id
// never match, so it only dedupes traffic from servers that stamp ids.
type IDDedup struct{}

// Matches implements DedupStrategy.
func (IDDedup) Matches(existing, incoming wire.Message) bool {
	return incoming.ID != "" && existing.ID == incoming.ID
}

// Reconciler merges the one-time snapshot history with the live stream into
// a single duplicate-free sequence. The sequence is append-only in receipt
// order and is never re-sorted: out-of-order delivery shows out of order.
type Reconciler struct {
	mu       sync.Mutex
	messages []wire.Message
	strategy DedupStrategy

	parseErrors int
}

// NewReconciler creates a Reconciler. A nil strategy falls back to the
// window heuristic with the default tolerance.
func NewReconciler(strategy DedupStrategy) *Reconciler {
	if strategy == nil {
		strategy = WindowDedup{Window: DefaultDedupWindow}
	}
	return &Reconciler{strategy: strategy}
}

// Load installs the snapshot history as the initial sequence, replacing
// whatever was there.
func (r *Reconciler) Load(history []wire.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append([]wire.Message(nil), history...)
}

// Ingest parses a raw channel payload and applies it. A parse failure
// discards the payload and reports the error; it never disturbs the
// sequence. The returned bool says whether the message was appended.
func (r *Reconciler) Ingest(raw []byte) (wire.Message, bool, error) {
	var msg wire.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return wire.Message{}, false, err
	}
	return msg, r.Apply(msg), nil
}

// Apply incorporates a single live message: discarded when the strategy
// matches an existing entry, appended to the end otherwise.
func (r *Reconciler) Apply(msg wire.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.strategy.Matches(r.messages[i], msg) {
			return false
		}
	}
	r.messages = append(r.messages, msg)
	return true
}

// Messages returns a copy of the current sequence, oldest first.
func (r *Reconciler) Messages() []wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.Message(nil), r.messages...)
}

// Len returns the current sequence length.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// ParseErrors returns how many malformed payloads were discarded.
func (r *Reconciler) ParseErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parseErrors
}
