package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plutochat/internal/wire"
)

func textMsg(sender, content string, ts time.Time) wire.Message {
	return wire.Message{Sender: sender, Content: content, Type: wire.TextMessage, Timestamp: ts}
}

func TestWindowDedupMatches(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		existing wire.Message
		incoming wire.Message
		want     bool
	}{
		{
			name:     "identical within window",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("alice", "hello", base.Add(300*time.Millisecond)),
			want:     true,
		},
		{
			name:     "incoming earlier than existing",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("alice", "hello", base.Add(-300*time.Millisecond)),
			want:     true,
		},
		{
			name:     "outside window",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("alice", "hello", base.Add(1500*time.Millisecond)),
			want:     false,
		},
		{
			name:     "exactly at window boundary",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("alice", "hello", base.Add(time.Second)),
			want:     false,
		},
		{
			name:     "different sender",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("bob", "hello", base),
			want:     false,
		},
		{
			name:     "different content",
			existing: textMsg("alice", "hello", base),
			incoming: textMsg("alice", "hello!", base),
			want:     false,
		},
	}

	d := WindowDedup{Window: time.Second}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Matches(tt.existing, tt.incoming))
		})
	}
}

func TestWindowDedupZeroWindowUsesDefault(t *testing.T) {
	base := time.Now()
	d := WindowDedup{}
	assert.True(t, d.Matches(textMsg("alice", "hi", base), textMsg("alice", "hi", base.Add(500*time.Millisecond))))
	assert.False(t, d.Matches(textMsg("alice", "hi", base), textMsg("alice", "hi", base.Add(2*time.Second))))
}

func TestIDDedupMatches(t *testing.T) {
	base := time.Now()
	a := textMsg("alice", "hi", base)
	a.ID = "msg-1"
	b := textMsg("alice", "hi", base)
	b.ID = "msg-2"

	d := IDDedup{}
	assert.True(t, d.Matches(a, a))
	assert.False(t, d.Matches(a, b), "distinct ids are distinct messages even with equal content")

	noID := textMsg("alice", "hi", base)
	assert.False(t, d.Matches(noID, noID), "messages without ids never match")
}

func TestReconcilerDropsSnapshotEcho(t *testing.T) {
	base := time.Now()
	history := []wire.Message{
		textMsg("alice", "first", base.Add(-time.Minute)),
		textMsg("bob", "second", base),
	}

	r := NewReconciler(nil)
	r.Load(history)

	// A live redelivery of the last snapshot message must not duplicate it.
	added := r.Apply(textMsg("bob", "second", base.Add(200*time.Millisecond)))
	assert.False(t, added)
	assert.Equal(t, 2, r.Len())

	added = r.Apply(textMsg("bob", "third", base.Add(time.Second)))
	assert.True(t, added)
	assert.Equal(t, 3, r.Len())
}

func TestReconcilerAppendsInReceiptOrder(t *testing.T) {
	base := time.Now()
	r := NewReconciler(nil)
	r.Load([]wire.Message{textMsg("alice", "old", base.Add(-time.Hour))})

	// A message with an older timestamp still lands at the end: the
	// sequence reflects receipt order and is never re-sorted.
	require.True(t, r.Apply(textMsg("bob", "newer", base)))
	require.True(t, r.Apply(textMsg("carol", "late straggler", base.Add(-30*time.Minute))))

	msgs := r.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "old", msgs[0].Content)
	assert.Equal(t, "newer", msgs[1].Content)
	assert.Equal(t, "late straggler", msgs[2].Content)
}

func TestReconcilerIDStrategyKeepsRapidDoubleSend(t *testing.T) {
	base := time.Now()
	first := textMsg("alice", "ok", base)
	first.ID = "id-1"
	second := textMsg("alice", "ok", base.Add(100*time.Millisecond))
	second.ID = "id-2"

	windowed := NewReconciler(WindowDedup{Window: time.Second})
	require.True(t, windowed.Apply(first))
	assert.False(t, windowed.Apply(second), "window heuristic collapses the double-send")

	byID := NewReconciler(IDDedup{})
	require.True(t, byID.Apply(first))
	assert.True(t, byID.Apply(second), "id strategy keeps both")
	assert.False(t, byID.Apply(second), "redelivery of the same id is dropped")
}

func TestReconcilerIngestMalformedPayload(t *testing.T) {
	r := NewReconciler(nil)
	r.Load([]wire.Message{textMsg("alice", "hello", time.Now())})

	_, added, err := r.Ingest([]byte("{not json"))
	require.Error(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, r.Len(), "malformed payload leaves the sequence untouched")
	assert.Equal(t, 1, r.ParseErrors())

	msg, added, err := r.Ingest([]byte(`{"sender":"bob","content":"hi","type":"TEXT","timestamp":"2026-03-14T10:00:00Z"}`))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "bob", msg.Sender)
	assert.Equal(t, 2, r.Len())
}

func TestReconcilerMessagesReturnsCopy(t *testing.T) {
	r := NewReconciler(nil)
	r.Load([]wire.Message{textMsg("alice", "hello", time.Now())})

	msgs := r.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hello", r.Messages()[0].Content)
}
