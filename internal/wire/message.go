package wire

import "time"

// MessageType discriminates the payload of a chat message.
type MessageType string

const (
	TextMessage  MessageType = "TEXT"
	ImageMessage MessageType = "IMAGE" // Content is a caption, MediaURL points at the image
)

// Message is the serialized form of a chat message as it travels between the
// REST snapshot, the broker topic, and the client. ID is empty until the
// server stamps it during fan-out; clients must not rely on it being present
// in snapshots written before the id rollout.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content,omitempty"`
	MediaURL  string      `json:"mediaUrl,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	FileName  string      `json:"fileName,omitempty"`
	FileSize  int64       `json:"fileSize,omitempty"`
}

// RoomSnapshot is the response of the room fetch endpoint: the member list
// and the full ordered message history, oldest first.
type RoomSnapshot struct {
	RoomID   string    `json:"roomId"`
	Members  []string  `json:"members"`
	Online   []string  `json:"online,omitempty"`
	Messages []Message `json:"messages"`
}
