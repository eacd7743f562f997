package chatserver

import (
	"context"
	"log"
	"time"

	appRedis "plutochat/internal/redis"
)

// PresenceNotifier bridges hub subscription events to the Redis presence
// tracker. Presence updates are best effort; failures are logged, never
// propagated into the hub loop.
type PresenceNotifier struct {
	presence *appRedis.Presence
}

// NewPresenceNotifier creates a new PresenceNotifier instance.
func NewPresenceNotifier(presence *appRedis.Presence) *PresenceNotifier {
	return &PresenceNotifier{presence: presence}
}

// Joined marks the user online in the room.
func (n *PresenceNotifier) Joined(room, username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.presence.Join(ctx, room, username); err != nil {
		log.Printf("warning: presence join failed: %v", err)
	}
}

// Left marks the user offline in the room.
func (n *PresenceNotifier) Left(room, username string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.presence.Leave(ctx, room, username); err != nil {
		log.Printf("warning: presence leave failed: %v", err)
	}
}
