package memory

import (
	"context"
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SummaryPrefix 摘要回填窗口时使用的标记前缀。
// 上下文构建依赖它识别摘要条目。
const SummaryPrefix = "(summary) "

// Entry 窗口/上下文中的一条对话消息
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WindowStore 会话滚动窗口接口
// 存储每个会话最近的原始对话，按配置上限自动淘汰最旧条目
type WindowStore interface {
	// Append 追加一条消息（超出上限时淘汰最旧条目，并刷新整个窗口的过期时间）
	Append(ctx context.Context, chatID int64, entry Entry) error

	// Read 按时间顺序（旧 -> 新）读取最近 limit 条；limit <= 0 使用窗口上限
	Read(ctx context.Context, chatID int64, limit int) ([]Entry, error)

	// Clear 清空会话窗口
	Clear(ctx context.Context, chatID int64) error
}

// ReplyCache 问答缓存接口（全局精确匹配）
type ReplyCache interface {
	// Get 查询缓存答案；未命中返回 found=false
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set 写入缓存答案并设置 TTL
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete 删除单条缓存；返回删除条数（0/1）
	Delete(ctx context.Context, key string) (int64, error)

	// Keys 列出命名空间下的部分 key（巡检用）
	Keys(ctx context.Context, limit int) ([]string, error)

	// Purge 清空命名空间下所有缓存；返回删除条数
	Purge(ctx context.Context) (int64, error)
}

// User 持久化的用户身份
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Chat 持久化的会话身份
type Chat struct {
	ID     int64
	Type   string // private | group | supergroup | channel
	Title  string
	UserID int64 // 私聊时为对端用户 id，否则 0
}

// DurableStore 持久化存储接口
// 身份 upsert、单条可覆写摘要、只追加消息日志
type DurableStore interface {
	// UpsertUser 按 user_id upsert 用户
	UpsertUser(ctx context.Context, u User) error

	// UpsertChat 按 chat_id upsert 会话
	UpsertChat(ctx context.Context, c Chat) error

	// GetSummary 读取会话最新摘要；无摘要返回空串
	GetSummary(ctx context.Context, chatID int64) (string, error)

	// SetSummary 整体覆写会话摘要
	SetSummary(ctx context.Context, chatID int64, text string) error

	// AppendMessage 追加一条持久化消息（永不修改/删除）
	AppendMessage(ctx context.Context, chatID int64, role, content string) error
}

// Summarizer 摘要生成器接口
type Summarizer interface {
	// Summarize 将窗口消息压缩为简短摘要
	Summarize(ctx context.Context, entries []Entry) (string, error)
}
