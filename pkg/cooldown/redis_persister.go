package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "goaljournal:cooldown:windows"

// RedisPersister stores windows as JSON values in a Redis hash keyed by
// goal ID.
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister builds a Redis-backed window persister.
func NewRedisPersister(addr, password string) *RedisPersister {
	return &RedisPersister{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		key: defaultRedisKey,
	}
}

// Load reads all persisted windows.
func (p *RedisPersister) Load() (map[string]Window, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, err
	}
	windows := make(map[string]Window, len(data))
	for goalID, raw := range data {
		var w Window
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil, fmt.Errorf("decode cooldown window for goal %s: %w", goalID, err)
		}
		windows[goalID] = w
	}
	return windows, nil
}

// Save writes one goal's window.
func (p *RedisPersister) Save(goalID string, w Window) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return p.client.HSet(ctx, p.key, goalID, raw).Err()
}
