package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:"

// Client wraps the redis connection used as the token revocation store.
type Client struct {
	client *redis.Client
}

// NewClient connects to the redis instance at addr.
func NewClient(addr string, db int) *Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &Client{client: client}
}

// RevokeToken marks a token ID as revoked until its natural expiry.
// A non-positive ttl means the token is already expired and nothing
// needs to be stored.
func (c *Client) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

// IsTokenRevoked reports whether a token ID has been revoked.
func (c *Client) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks connectivity to redis.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
