package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// M2MTokenKey is the key used to store the M2M token in Redis
	M2MTokenKey = "m2m_token"
	// TokenExpiryBuffer is the buffer before actual expiry at which the
	// token is treated as stale (seconds)
	TokenExpiryBuffer = 60
)

// TokenCache represents a cached token with its expiry time
type TokenCache struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid checks if the token is still valid with a buffer time before expiry
func (tc *TokenCache) IsValid() bool {
	if tc == nil || tc.Token == "" {
		return false
	}
	return time.Now().Add(TokenExpiryBuffer * time.Second).Before(tc.ExpiresAt)
}

// RedisTokenCache implements token caching using Redis
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func (c *RedisTokenCache) Get(ctx context.Context) (*TokenCache, error) {
	data, err := c.Client.Get(ctx, M2MTokenKey).Result()
	if err != nil {
		return nil, err
	}
	var cached TokenCache
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, token TokenCache) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return c.Client.Set(ctx, M2MTokenKey, data, ttl).Err()
}
