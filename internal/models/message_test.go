package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"plutochat/internal/wire"
)

func TestMessageFromWireDefaults(t *testing.T) {
	stored := MessageFromWire(1, wire.Message{Sender: "alice", Content: "hi"})

	assert.Equal(t, wire.TextMessage, stored.Type, "missing type defaults to text")
	assert.False(t, stored.SentAt.IsZero(), "missing timestamp is stamped at receipt")
}

func TestMessageWireRoundTrip(t *testing.T) {
	sentAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	in := wire.Message{
		ID:        "m-1",
		Sender:    "alice",
		Content:   "📷 Photo",
		MediaURL:  "/uploads/abc.png",
		Type:      wire.ImageMessage,
		Timestamp: sentAt,
		FileName:  "cat.png",
		FileSize:  512,
	}

	out := MessageFromWire(7, in).ToWire()
	assert.Equal(t, in, out)
}
