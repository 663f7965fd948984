package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryWindow WindowStore 的进程内实现。
// 语义与 Redis 实现保持一致：新消息插到头部、超限裁剪尾部、
// 每次追加刷新整个窗口的过期时间。主要用于测试与无 Redis 的本地运行。
type InMemoryWindow struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration
	windows map[int64]*inmemWindow
	now     func() time.Time
}

type inmemWindow struct {
	entries  []Entry // 新 -> 旧
	deadline time.Time
}

// NewInMemoryWindow 创建进程内窗口存储
func NewInMemoryWindow(size int, ttl time.Duration) *InMemoryWindow {
	if size <= 0 {
		size = 30
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemoryWindow{
		size:    size,
		ttl:     ttl,
		windows: make(map[int64]*inmemWindow),
		now:     time.Now,
	}
}

func (s *InMemoryWindow) Append(ctx context.Context, chatID int64, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.live(chatID)
	if w == nil {
		w = &inmemWindow{}
		s.windows[chatID] = w
	}

	w.entries = append([]Entry{entry}, w.entries...)
	if len(w.entries) > s.size {
		w.entries = w.entries[:s.size]
	}
	w.deadline = s.now().Add(s.ttl)
	return nil
}

func (s *InMemoryWindow) Read(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.live(chatID)
	if w == nil {
		return nil, nil
	}

	if limit <= 0 || limit > len(w.entries) {
		limit = len(w.entries)
	}

	// 头部是最新消息，按时间顺序返回需要反转
	out := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		out[limit-1-i] = w.entries[i]
	}
	return out, nil
}

func (s *InMemoryWindow) Clear(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, chatID)
	return nil
}

// live 返回未过期的窗口；过期则删除并返回 nil
func (s *InMemoryWindow) live(chatID int64) *inmemWindow {
	w, ok := s.windows[chatID]
	if !ok {
		return nil
	}
	if s.now().After(w.deadline) && !w.deadline.IsZero() {
		delete(s.windows, chatID)
		return nil
	}
	return w
}
