package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoundsCache keeps the rendered rounds view of a division in Redis so the
// bracket screens do not hit Postgres on every poll. A nil client disables
// the cache entirely; every method then reports a miss.
type RoundsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoundsCache(client *redis.Client, ttl time.Duration) *RoundsCache {
	return &RoundsCache{client: client, ttl: ttl}
}

func key(clubID, divisionID int) string {
	return fmt.Sprintf("rounds:%d:%d", clubID, divisionID)
}

// Get unmarshals the cached view into dest. The bool reports a hit.
func (c *RoundsCache) Get(ctx context.Context, clubID, divisionID int, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key(clubID, divisionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RoundsCache) Set(ctx context.Context, clubID, divisionID int, view any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(clubID, divisionID), raw, c.ttl).Err()
}

// Invalidate drops the cached view. Called after every write that changes
// what the bracket screens show.
func (c *RoundsCache) Invalidate(ctx context.Context, clubID, divisionID int) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key(clubID, divisionID)).Err()
}
