package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lobby", "lobby"},
		{"LOBBY", "lobby"},
		{"  lobby  ", "lobby"},
		{"Dev-Team", "dev-team"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoomSlug(tt.in), "RoomSlug(%q)", tt.in)
	}
}
