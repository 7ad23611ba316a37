// Package session caches verified bearer-token identities in Redis so every
// request does not round-trip to the auth provider.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotCached = errors.New("identity not cached")

// Identity is the resolved caller stored per token hash.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// RedisCache holds identities keyed by a hash of the bearer token. Entries
// expire on their own; role changes become visible after at most one TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
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

	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, prefix: "ident:", ttl: ttl}
}

// HashToken derives the cache key material from a bearer token. Raw tokens
// never reach Redis.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}

func (c *RedisCache) key(tokenHash string) string {
	return c.prefix + tokenHash
}

func (c *RedisCache) userKey(userID string) string {
	return c.prefix + "user:" + userID
}

func (c *RedisCache) Put(ctx context.Context, tokenHash string, identity Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := c.client.Set(ctx, c.key(tokenHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache identity: %w", err)
	}
	// Reverse index so all of a user's sessions can be evicted at once.
	if identity.UserID != "" {
		pipe := c.client.Pipeline()
		pipe.SAdd(ctx, c.userKey(identity.UserID), tokenHash)
		pipe.Expire(ctx, c.userKey(identity.UserID), c.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("index identity: %w", err)
		}
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, tokenHash string) (Identity, error) {
	data, err := c.client.Get(ctx, c.key(tokenHash)).Result()
	if err == redis.Nil {
		return Identity{}, ErrNotCached
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup identity: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return Identity{}, fmt.Errorf("unmarshal identity: %w", err)
	}
	return identity, nil
}

// DropUser evicts every cached identity belonging to userID, used when an
// account is deleted or its role changes and the stale entries must not
// outlive the mutation.
func (c *RedisCache) DropUser(ctx context.Context, userID string) error {
	hashes, err := c.client.SMembers(ctx, c.userKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list user identities: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, c.key(hash))
	}
	keys = append(keys, c.userKey(userID))
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("drop user identities: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
