package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which usernames are currently subscribed to a room topic.
// Keys follow the scheme rooms:{slug}:online and expire so a crashed
// chatserver instance cannot pin members online forever.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresence creates a Redis-backed presence tracker.
func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client, ttl: 2 * time.Minute}
}

func onlineKey(slug string) string {
	return fmt.Sprintf("rooms:%s:online", slug)
}

// Join marks username online in the room and refreshes the set's TTL.
func (p *Presence) Join(ctx context.Context, slug, username string) error {
	key := onlineKey(slug)
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, key, username)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("marking %s online in %s: %w", username, slug, err)
	}
	return nil
}

// Leave removes username from the room's online set.
func (p *Presence) Leave(ctx context.Context, slug, username string) error {
	if err := p.client.SRem(ctx, onlineKey(slug), username).Err(); err != nil {
		return fmt.Errorf("marking %s offline in %s: %w", username, slug, err)
	}
	return nil
}

// Online lists the usernames currently online in the room.
func (p *Presence) Online(ctx context.Context, slug string) ([]string, error) {
	members, err := p.client.SMembers(ctx, onlineKey(slug)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing online members of %s: %w", slug, err)
	}
	return members, nil
}
