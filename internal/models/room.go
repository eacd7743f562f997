package models

import (
	"strings"
	"time"
)

// Room represents a named chat channel. RoomID keeps the form the creator
// typed; Slug is the lowercased form and carries the uniqueness constraint,
// so "General" and "general" are the same room.
type Room struct {
	BaseModel
	RoomID string `gorm:"type:varchar(100);not null" json:"roomId"`
	Slug   string `gorm:"type:varchar(100);uniqueIndex;not null" json:"-"`

	Messages []Message `gorm:"foreignKey:RoomID;references:ID" json:"messages,omitempty"`
	Users    []*User   `gorm:"many2many:room_members;" json:"-"`
}

// TableName specifies the table name for the Room model.
func (Room) TableName() string {
	return "rooms"
}

// RoomSlug normalizes a room identifier for lookups.
func RoomSlug(roomID string) string {
	return strings.ToLower(strings.TrimSpace(roomID))
}

// RoomMember links a user to a room.
type RoomMember struct {
	RoomID   uint      `gorm:"primaryKey;autoIncrement:false" json:"roomId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`

	Room Room `gorm:"foreignKey:RoomID" json:"-"`
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for the RoomMember model.
func (RoomMember) TableName() string {
	return "room_members"
}
