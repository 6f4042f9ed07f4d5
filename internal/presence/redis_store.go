// Package presence tracks ephemeral per-document viewer heartbeats in
// Redis. Heartbeats are best-effort and never transactionally linked
// to document writes.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ActiveWindow is how recent a heartbeat must be for its user to
	// count as active.
	ActiveWindow = 30 * time.Second
	// heartbeat keys expire at twice the active window; Redis TTL is
	// the stale-heartbeat sweep.
	keyTTL = 2 * ActiveWindow
)

// Heartbeat is one viewer's liveness record for one document.
type Heartbeat struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	Cursor        int       `json:"cursor"`
	SelectionFrom int       `json:"selection_from"`
	SelectionTo   int       `json:"selection_to"`
	LastSeen      time.Time `json:"last_seen"`
}

// RedisStore keeps heartbeats under presence:<docID>:<userID>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "presence:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "presence:"}
}

func (s *RedisStore) key(docID, userID string) string {
	return s.prefix + docID + ":" + userID
}

// Record writes a viewer's heartbeat, stamping LastSeen.
func (s *RedisStore) Record(ctx context.Context, docID string, hb Heartbeat) error {
	hb.LastSeen = time.Now().UTC()

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	if err := s.client.Set(ctx, s.key(docID, hb.UserID), data, keyTTL).Err(); err != nil {
		return fmt.Errorf("save heartbeat: %w", err)
	}
	return nil
}

// ListActive returns heartbeats no older than ActiveWindow for a
// document. Keys past the window but inside the TTL are skipped.
func (s *RedisStore) ListActive(ctx context.Context, docID string) ([]Heartbeat, error) {
	cutoff := time.Now().UTC().Add(-ActiveWindow)

	var active []Heartbeat
	iter := s.client.Scan(ctx, 0, s.prefix+docID+":*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("read heartbeat: %w", err)
		}

		var hb Heartbeat
		if err := json.Unmarshal([]byte(data), &hb); err != nil {
			continue
		}
		if hb.LastSeen.Before(cutoff) {
			continue
		}
		active = append(active, hb)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan heartbeats: %w", err)
	}
	return active, nil
}

// Remove deletes one viewer's heartbeat, e.g. on explicit leave.
func (s *RedisStore) Remove(ctx context.Context, docID, userID string) error {
	if err := s.client.Del(ctx, s.key(docID, userID)).Err(); err != nil {
		return fmt.Errorf("remove heartbeat: %w", err)
	}
	return nil
}

// ClearDocument drops every heartbeat for a document. Called when the
// document is permanently deleted.
func (s *RedisStore) ClearDocument(ctx context.Context, docID string) error {
	iter := s.client.Scan(ctx, 0, s.prefix+docID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan heartbeats: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear heartbeats: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
