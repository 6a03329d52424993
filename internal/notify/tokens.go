package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TokenPrefix is the Redis key prefix for per-user device token sets:
//
//	Key:     push:tokens:<user_id>
//	Members: opaque delivery tokens registered by the device collaborator
const TokenPrefix = "push:tokens:"

// TokenRegistry manages per-user push registration tokens: the gateway
// registers them, the notifier worker lists them for delivery and removes
// ones a provider reports as definitively invalid.
type TokenRegistry struct {
	client *redis.Client
}

// NewTokenRegistry creates a registry using the provided Redis client.
func NewTokenRegistry(client *redis.Client) *TokenRegistry {
	return &TokenRegistry{client: client}
}

// Register adds a token to the user's set. Adding an existing token is a
// no-op.
func (r *TokenRegistry) Register(ctx context.Context, userID, token string) error {
	if err := r.client.SAdd(ctx, TokenPrefix+userID, token).Err(); err != nil {
		return fmt.Errorf("notify: token register: %w", err)
	}
	return nil
}

// Tokens returns all delivery tokens registered for the user.
func (r *TokenRegistry) Tokens(ctx context.Context, userID string) ([]string, error) {
	tokens, err := r.client.SMembers(ctx, TokenPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: token list: %w", err)
	}
	return tokens, nil
}

// Prune removes a token from the user's set after a definitive
// invalid-token failure.
func (r *TokenRegistry) Prune(ctx context.Context, userID, token string) error {
	if err := r.client.SRem(ctx, TokenPrefix+userID, token).Err(); err != nil {
		return fmt.Errorf("notify: token prune: %w", err)
	}
	return nil
}
