// Package presence tracks which users currently hold a live gateway
// connection, backed by Redis with TTL-based expiry:
//
//	Key:   presence:<user_id>
//	Value: <gateway server name>
//	TTL:   refreshed on heartbeat; a crashed gateway's users expire out
//
// The dispatcher reads presence to decide who gets a push notification
// instead of the live broadcast.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for presence records.
	KeyPrefix = "presence:"

	// TTL is how long a presence record lives without a heartbeat refresh.
	TTL = 2 * time.Minute
)

// Store manages presence records in Redis.
type Store struct {
	client     *redis.Client
	serverName string // gateway instance writing the records
}

// NewStore creates a presence store using the provided Redis client.
func NewStore(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

// MarkOnline records the user as connected to this gateway.
func (s *Store) MarkOnline(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, KeyPrefix+userID, s.serverName, TTL).Err(); err != nil {
		return fmt.Errorf("presence: mark online: %w", err)
	}
	return nil
}

// Refresh extends the user's presence TTL. Called from the gateway
// heartbeat path.
func (s *Store) Refresh(ctx context.Context, userID string) error {
	if err := s.client.Expire(ctx, KeyPrefix+userID, TTL).Err(); err != nil {
		return fmt.Errorf("presence: refresh: %w", err)
	}
	return nil
}

// MarkOffline removes the user's presence record immediately.
func (s *Store) MarkOffline(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, KeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("presence: mark offline: %w", err)
	}
	return nil
}

// IsOnline reports whether the user has a live presence record.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	_, err := s.client.Get(ctx, KeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence: is online: %w", err)
	}
	return true, nil
}

// OnlineSet checks many users in one pipelined round trip and returns the
// subset that is online.
func (s *Store) OnlineSet(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, KeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("presence: online set: %w", err)
	}

	online := make(map[string]bool, len(userIDs))
	for i, id := range userIDs {
		online[id] = cmds[i].Val() > 0
	}
	return online, nil
}
