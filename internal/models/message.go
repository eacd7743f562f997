package models

import (
	"time"

	"plutochat/internal/wire"
)

// Message is the stored form of a chat message. Sender is the username
// string as it appeared on the wire; messages survive the sender's account.
// MessageID is the server-assigned uuid stamped during fan-out and is what
// id-based deduplication keys on.
type Message struct {
	BaseModel
	RoomID    uint             `gorm:"index;not null" json:"-"`
	MessageID string           `gorm:"type:varchar(36);uniqueIndex" json:"messageId"`
	Sender    string           `gorm:"type:varchar(100);not null" json:"sender"`
	Type      wire.MessageType `gorm:"type:varchar(10);not null;default:'TEXT'" json:"type"`
	Content   string           `gorm:"type:text" json:"content"`
	MediaURL  string           `gorm:"type:varchar(255)" json:"mediaUrl,omitempty"`
	FileName  string           `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	FileSize  int64            `json:"fileSize,omitempty"`
	SentAt    time.Time        `gorm:"not null;index" json:"sentAt"`
}

// TableName specifies the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}

// ToWire converts the stored message to its serialized form.
func (m *Message) ToWire() wire.Message {
	return wire.Message{
		ID:        m.MessageID,
		Sender:    m.Sender,
		Content:   m.Content,
		MediaURL:  m.MediaURL,
		Type:      m.Type,
		Timestamp: m.SentAt,
		FileName:  m.FileName,
		FileSize:  m.FileSize,
	}
}

// MessageFromWire converts a wire message for storage in the given room.
func MessageFromWire(roomID uint, w wire.Message) *Message {
	msgType := w.Type
	if msgType == "" {
		msgType = wire.TextMessage
	}
	ts := w.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Message{
		RoomID:    roomID,
		MessageID: w.ID,
		Sender:    w.Sender,
		Type:      msgType,
		Content:   w.Content,
		MediaURL:  w.MediaURL,
		FileName:  w.FileName,
		FileSize:  w.FileSize,
		SentAt:    ts,
	}
}
