package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// Store PostgreSQL 实现的持久化存储。
// users/chats 按 id upsert，chat_memory 每会话一条可覆写摘要，
// chat_messages 只追加消息日志。
type Store struct {
	db *sql.DB
}

// NewStore 创建持久化存储
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureTables 确保持久化表存在
func (s *Store) EnsureTables(ctx context.Context) error {
	applog.Info("[Durable/PG] Ensuring tables exist...")
	ddl := `
	CREATE TABLE IF NOT EXISTS users (
		user_id    BIGINT PRIMARY KEY,
		first_name TEXT,
		last_name  TEXT,
		username   TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS chats (
		chat_id    BIGINT PRIMARY KEY,
		chat_type  VARCHAR(32) NOT NULL,
		title      TEXT,
		user_id    BIGINT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS chat_memory (
		chat_id      BIGINT PRIMARY KEY,
		last_summary TEXT NOT NULL DEFAULT '',
		updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS chat_messages (
		id         BIGSERIAL PRIMARY KEY,
		chat_id    BIGINT NOT NULL,
		role       VARCHAR(16) NOT NULL,
		content    TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_created ON chat_messages(chat_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		applog.Error("[Durable/PG] ❌ Failed to create tables", "error", err)
	} else {
		applog.Info("[Durable/PG] ✅ Tables ready (users, chats, chat_memory, chat_messages)")
	}
	return err
}

// UpsertUser 按 user_id upsert 用户
func (s *Store) UpsertUser(ctx context.Context, u memory.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, first_name, last_name, username, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     username = EXCLUDED.username,
		     updated_at = EXCLUDED.updated_at`,
		u.ID, nullable(u.FirstName), nullable(u.LastName), nullable(u.Username),
	)
	if err != nil {
		applog.Error("[Durable/PG] ❌ Upsert user failed", "user_id", u.ID, "error", err)
		return fmt.Errorf("pg upsert user: %w", err)
	}
	return nil
}

// UpsertChat 按 chat_id upsert 会话
func (s *Store) UpsertChat(ctx context.Context, c memory.Chat) error {
	var userID interface{}
	if c.UserID != 0 {
		userID = c.UserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, chat_type, title, user_id, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (chat_id) DO UPDATE
		 SET chat_type = EXCLUDED.chat_type,
		     title = EXCLUDED.title,
		     user_id = EXCLUDED.user_id,
		     updated_at = EXCLUDED.updated_at`,
		c.ID, c.Type, nullable(c.Title), userID,
	)
	if err != nil {
		applog.Error("[Durable/PG] ❌ Upsert chat failed", "chat_id", c.ID, "error", err)
		return fmt.Errorf("pg upsert chat: %w", err)
	}
	return nil
}

// GetSummary 读取会话最新摘要；无摘要返回空串
func (s *Store) GetSummary(ctx context.Context, chatID int64) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_summary FROM chat_memory WHERE chat_id = $1`,
		chatID,
	).Scan(&summary)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		applog.Error("[Durable/PG] ❌ Load summary failed", "chat_id", chatID, "error", err)
		return "", fmt.Errorf("pg get summary: %w", err)
	}
	return summary, nil
}

// SetSummary 整体覆写会话摘要
func (s *Store) SetSummary(ctx context.Context, chatID int64, text string) error {
	summaryPreview := text
	if len(summaryPreview) > 150 {
		summaryPreview = summaryPreview[:150] + "..."
	}
	applog.Info("[Durable/PG] 💾 Saving summary",
		"chat_id", chatID,
		"summary_length", len(text),
		"summary_preview", summaryPreview,
	)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_memory (chat_id, last_summary, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (chat_id) DO UPDATE
		 SET last_summary = EXCLUDED.last_summary,
		     updated_at = EXCLUDED.updated_at`,
		chatID, text,
	)
	if err != nil {
		applog.Error("[Durable/PG] ❌ Save summary failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("pg set summary: %w", err)
	}

	applog.Info("[Durable/PG] ✅ Summary saved", "chat_id", chatID)
	return nil
}

// AppendMessage 追加一条持久化消息
func (s *Store) AppendMessage(ctx context.Context, chatID int64, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (chat_id, role, content) VALUES ($1, $2, $3)`,
		chatID, role, content,
	)
	if err != nil {
		applog.Error("[Durable/PG] ❌ Append message failed", "chat_id", chatID, "role", role, "error", err)
		return fmt.Errorf("pg append message: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
