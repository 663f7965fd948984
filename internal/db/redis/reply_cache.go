package redisdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	applog "karanbot/internal/platform/log"
)

// ReplyCache Redis 实现的问答缓存。
// 所有 key 形如 {namespace}:<sha256>，独立于窗口存储的逻辑库，
// 便于整体巡检与清理。
type ReplyCache struct {
	client    *redis.Client
	namespace string
}

// NewReplyCache 创建问答缓存
func NewReplyCache(client *redis.Client, namespace string) *ReplyCache {
	namespace = strings.TrimRight(namespace, ":")
	if namespace == "" {
		namespace = "cache:qa"
	}
	return &ReplyCache{
		client:    client,
		namespace: namespace,
	}
}

// Get 查询缓存答案
func (c *ReplyCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		applog.Debug("[Cache/QA] Miss", "key", key)
		return "", false, nil
	}
	if err != nil {
		applog.Error("[Cache/QA] ❌ GET failed", "key", key, "error", err)
		return "", false, fmt.Errorf("redis cache get: %w", err)
	}

	applog.Info("[Cache/QA] 🎯 Hit", "key", key, "value_length", len(val))
	return val, true, nil
}

// Set 写入缓存答案
func (c *ReplyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		applog.Error("[Cache/QA] ❌ SET failed", "key", key, "error", err)
		return fmt.Errorf("redis cache set: %w", err)
	}
	applog.Debug("[Cache/QA] Stored", "key", key, "ttl", ttl)
	return nil
}

// Delete 删除单条缓存
func (c *ReplyCache) Delete(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cache delete: %w", err)
	}
	return n, nil
}

// Keys 列出命名空间下的部分 key（SCAN，巡检用）
func (c *ReplyCache) Keys(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	var keys []string
	iter := c.client.Scan(ctx, 0, c.namespace+":*", 1000).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis cache scan: %w", err)
	}
	return keys, nil
}

// Purge 清空命名空间下所有缓存
func (c *ReplyCache) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	iter := c.client.Scan(ctx, 0, c.namespace+":*", 1000).Iterator()

	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("redis cache purge: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis cache scan: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("redis cache purge: %w", err)
	}

	applog.Info("[Cache/QA] Purged", "namespace", c.namespace, "keys_deleted", deleted)
	return deleted, nil
}
