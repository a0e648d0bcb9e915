package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const chatIndexPrefix = "chat:"

// ChatIndex remembers which replica served a chat completion so signature
// lookups can go straight to it.
type ChatIndex interface {
	Put(ctx context.Context, chatID, modelID string) error
	Lookup(ctx context.Context, chatID string) (string, error)
}

// RedisChatIndex stores chat id -> model id with a TTL.
type RedisChatIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChatIndex creates a chat index on client.
func NewRedisChatIndex(client *redis.Client, ttl time.Duration) *RedisChatIndex {
	return &RedisChatIndex{client: client, ttl: ttl}
}

// Put records that modelID produced chatID.
func (c *RedisChatIndex) Put(ctx context.Context, chatID, modelID string) error {
	if err := c.client.Set(ctx, chatIndexPrefix+chatID, modelID, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to index chat: %w", err)
	}
	return nil
}

// Lookup returns the model id for chatID, or ErrChatNotIndexed.
func (c *RedisChatIndex) Lookup(ctx context.Context, chatID string) (string, error) {
	modelID, err := c.client.Get(ctx, chatIndexPrefix+chatID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrChatNotIndexed
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up chat: %w", err)
	}
	return modelID, nil
}

// NoopChatIndex is used when Redis is not configured. Every lookup misses.
type NoopChatIndex struct{}

func (NoopChatIndex) Put(context.Context, string, string) error { return nil }

func (NoopChatIndex) Lookup(context.Context, string) (string, error) {
	return "", ErrChatNotIndexed
}
