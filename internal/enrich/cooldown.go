package enrich

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const missKeyPrefix = "bio:miss:"

// Cooldown remembers players the waterfall recently came up empty on so
// repeated runs do not hammer the same sources for them.
type Cooldown interface {
	Active(ctx context.Context, playerID int64) (bool, error)
	Mark(ctx context.Context, playerID int64) error
	Clear(ctx context.Context, playerID int64) error
}

// NoCooldown never holds a player back.
type NoCooldown struct{}

func (NoCooldown) Active(context.Context, int64) (bool, error) { return false, nil }
func (NoCooldown) Mark(context.Context, int64) error           { return nil }
func (NoCooldown) Clear(context.Context, int64) error          { return nil }

// redisClient is the subset of *redis.Client the cooldown uses.
type redisClient interface {
	SetEx(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCooldown keeps one expiring key per missed player.
type RedisCooldown struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisCooldown creates a cooldown whose marks expire after ttl.
func NewRedisCooldown(client redisClient, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl}
}

// MissKey returns the key marking playerID.
func MissKey(playerID int64) string {
	return missKeyPrefix + strconv.FormatInt(playerID, 10)
}

// Active reports whether playerID was marked within the ttl.
func (c *RedisCooldown) Active(ctx context.Context, playerID int64) (bool, error) {
	n, err := c.client.Exists(ctx, MissKey(playerID)).Result()
	if err != nil {
		return false, eris.Wrapf(err, "enrich: cooldown lookup %d", playerID)
	}
	return n == 1, nil
}

// Mark starts the cooldown for playerID.
func (c *RedisCooldown) Mark(ctx context.Context, playerID int64) error {
	if err := c.client.SetEx(ctx, MissKey(playerID), "1", c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "enrich: cooldown mark %d", playerID)
	}
	return nil
}

// Clear ends the cooldown for playerID.
func (c *RedisCooldown) Clear(ctx context.Context, playerID int64) error {
	if err := c.client.Del(ctx, MissKey(playerID)).Err(); err != nil {
		return eris.Wrapf(err, "enrich: cooldown clear %d", playerID)
	}
	return nil
}
