package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"karanbot/internal/domain/memory"
	"karanbot/internal/provider"
)

// fakeProvider 可计数的 LLM 供应商桩
type fakeProvider struct {
	mu      sync.Mutex
	name    string
	reply   string
	calls   int
	lastReq *provider.CompletionRequest
	// failFirst 前 N 次调用返回错误，模拟暂态故障
	failFirst int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.calls <= p.failFirst {
		return nil, errors.New("upstream unavailable")
	}
	return &provider.CompletionResponse{Content: p.reply, Model: req.Model}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) lastRequest() *provider.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

// fakeCache 进程内问答缓存桩
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		delete(c.data, key)
		return 1, nil
	}
	return 0, nil
}

func (c *fakeCache) Keys(ctx context.Context, limit int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *fakeCache) Purge(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := int64(len(c.data))
	c.data = make(map[string]string)
	return n, nil
}

func (c *fakeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// fakeDurable 进程内持久化存储桩
type fakeDurable struct {
	mu          sync.Mutex
	summaries   map[int64]string
	messages    []string
	summarySets int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{summaries: make(map[int64]string)}
}

func (d *fakeDurable) UpsertUser(ctx context.Context, u memory.User) error { return nil }
func (d *fakeDurable) UpsertChat(ctx context.Context, c memory.Chat) error { return nil }

func (d *fakeDurable) GetSummary(ctx context.Context, chatID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.summaries[chatID], nil
}

func (d *fakeDurable) SetSummary(ctx context.Context, chatID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summaries[chatID] = text
	d.summarySets++
	return nil
}

func (d *fakeDurable) AppendMessage(ctx context.Context, chatID int64, role, content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, role+": "+content)
	return nil
}

// fakeSynthesizer TTS 桩
type fakeSynthesizer struct {
	lastText string
	fail     bool
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.fail {
		return nil, errors.New("tts unavailable")
	}
	s.lastText = text
	return []byte("AUDIO:" + text), nil
}

// fakeImageGen 图像生成桩
type fakeImageGen struct {
	lastPrompt string
	lastSize   string
}

func (g *fakeImageGen) Generate(ctx context.Context, prompt, size string) (string, error) {
	g.lastPrompt = prompt
	g.lastSize = size
	return "/tmp/fake-image.png", nil
}

// fakeSummarizer 摘要桩
type fakeSummarizer struct {
	calls int
}

func (s *fakeSummarizer) Summarize(ctx context.Context, entries []memory.Entry) (string, error) {
	s.calls++
	return "User and Karan chatted about the summit.", nil
}

// countSummaryEntries 统计窗口内摘要系统条目数
func countSummaryEntries(entries []memory.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Role == memory.RoleSystem && strings.HasPrefix(e.Content, memory.SummaryPrefix) {
			n++
		}
	}
	return n
}
