package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// WindowStore Redis List 实现的会话滚动窗口。
// 每个会话一个 list：LPUSH 新消息到头部，LTRIM 保留最近 N 条，
// 每次追加刷新整个 key 的 TTL。
type WindowStore struct {
	client *redis.Client
	size   int
	ttl    time.Duration
}

// WindowStoreConfig 窗口存储配置
type WindowStoreConfig struct {
	Client *redis.Client
	Size   int           // 窗口上限，默认 30
	TTL    time.Duration // 整窗过期时间，默认 24h
}

// NewWindowStore 创建 Redis 窗口存储
func NewWindowStore(cfg WindowStoreConfig) *WindowStore {
	if cfg.Size <= 0 {
		cfg.Size = 30
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &WindowStore{
		client: cfg.Client,
		size:   cfg.Size,
		ttl:    cfg.TTL,
	}
}

func (s *WindowStore) key(chatID int64) string {
	return fmt.Sprintf("karan:chat:%d:window", chatID)
}

// Append 追加一条消息并裁剪窗口、刷新 TTL（pipeline 单次往返）
func (s *WindowStore) Append(ctx context.Context, chatID int64, entry memory.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal window entry: %w", err)
	}

	key := s.key(chatID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.size-1))
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		applog.Error("[Window/Redis] ❌ Append pipeline failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("redis window append: %w", err)
	}

	applog.Debug("[Window/Redis] Entry appended",
		"chat_id", chatID,
		"role", entry.Role,
		"ttl", s.ttl,
	)
	return nil
}

// Read 读取最近 limit 条消息并转为时间顺序（旧 -> 新）
func (s *WindowStore) Read(ctx context.Context, chatID int64, limit int) ([]memory.Entry, error) {
	if limit <= 0 {
		limit = s.size
	}

	raw, err := s.client.LRange(ctx, s.key(chatID), 0, int64(limit-1)).Result()
	if err != nil {
		applog.Error("[Window/Redis] ❌ LRANGE failed", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("redis window read: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// list 头部是最新消息，反转为时间顺序
	entries := make([]memory.Entry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e memory.Entry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			applog.Warn("[Window/Redis] Skipping corrupted entry", "chat_id", chatID, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	applog.Debug("[Window/Redis] Window loaded",
		"chat_id", chatID,
		"entries", len(entries),
		"limit", limit,
	)
	return entries, nil
}

// Clear 删除会话窗口
func (s *WindowStore) Clear(ctx context.Context, chatID int64) error {
	applog.Info("[Window/Redis] Clearing window", "chat_id", chatID)
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return fmt.Errorf("redis window clear: %w", err)
	}
	return nil
}
