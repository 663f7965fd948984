package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
	"karanbot/internal/provider"
)

// GeneratorConfig 回复生成配置
type GeneratorConfig struct {
	// ProviderName 已注册的 LLM 供应商名，默认 openai
	ProviderName string
	// Model 对话模型，默认 gpt-4o-mini
	Model string

	// CacheEnabled 是否启用问答缓存
	CacheEnabled bool
	// CacheNamespace 缓存 key 命名空间，默认 cache:qa
	CacheNamespace string
	// CacheTTL 缓存答案有效期，默认 6h
	CacheTTL time.Duration
	// CacheMinChars 参与缓存的最短用户文本长度，默认 8
	CacheMinChars int
	// IncludeSystemPrompt 缓存 key 是否混入系统提示词（含摘要行）
	IncludeSystemPrompt bool

	// KnowledgeTopK 人设知识检索条数，默认 3
	KnowledgeTopK int
}

// Generator 回复文本生成器。
// 缓存优先：先按归一化 key 查问答缓存，未命中再调 LLM 并回填。
// 人设知识检索只增强提示词，不参与缓存 key。
type Generator struct {
	config    GeneratorConfig
	cache     memory.ReplyCache
	knowledge KnowledgeBase
}

// NewGenerator 创建生成器。cache、knowledge 均可为 nil（关闭对应能力）。
func NewGenerator(config GeneratorConfig, cache memory.ReplyCache, knowledge KnowledgeBase) *Generator {
	if config.ProviderName == "" {
		config.ProviderName = "openai"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.CacheNamespace == "" {
		config.CacheNamespace = "cache:qa"
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 6 * time.Hour
	}
	if config.CacheMinChars <= 0 {
		config.CacheMinChars = 8
	}
	if config.KnowledgeTopK <= 0 {
		config.KnowledgeTopK = 3
	}
	return &Generator{
		config:    config,
		cache:     cache,
		knowledge: knowledge,
	}
}

// Generate 基于会话上下文生成回复文本。
// convo 为时间顺序的上下文条目（摘要系统条目 + 窗口 + 当前用户消息）。
func (g *Generator) Generate(ctx context.Context, convo []memory.Entry) (string, bool, error) {
	lastUser := lastUserText(convo)

	cacheable := g.config.CacheEnabled && g.cache != nil &&
		len(strings.TrimSpace(lastUser)) >= g.config.CacheMinChars

	var cacheKey string
	if cacheable {
		cacheKey = memory.CacheKey(
			g.config.CacheNamespace,
			g.config.Model,
			g.systemForKey(convo),
			lastUser,
		)

		cached, hit, err := g.cache.Get(ctx, cacheKey)
		if err != nil {
			// 缓存故障降级为直接调模型
			applog.Warn("[Generator] Cache lookup failed, falling back to LLM", "error", err)
		} else if hit {
			return cached, true, nil
		}
	}

	llm, err := provider.GetProvider(g.config.ProviderName)
	if err != nil {
		return "", false, fmt.Errorf("get llm provider: %w", err)
	}

	messages := make([]provider.Message, 0, len(convo)+1)
	messages = append(messages, provider.Message{
		Role:    memory.RoleSystem,
		Content: g.systemPrompt(ctx, lastUser),
	})
	for _, e := range convo {
		messages = append(messages, provider.Message{Role: e.Role, Content: e.Content})
	}

	applog.Info("[Generator] 🤖 Calling LLM",
		"provider", g.config.ProviderName,
		"model", g.config.Model,
		"context_entries", len(convo),
	)

	resp, err := llm.Complete(ctx, &provider.CompletionRequest{
		Model:    g.config.Model,
		Messages: messages,
	})
	if err != nil {
		applog.Error("[Generator] ❌ LLM call failed", "error", err)
		return "", false, fmt.Errorf("llm complete: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		reply = EmptyReplyFallback
	}

	if cacheable {
		if err := g.cache.Set(ctx, cacheKey, reply, g.config.CacheTTL); err != nil {
			applog.Warn("[Generator] Cache store failed", "error", err)
		}
	}

	return reply, false, nil
}

// systemPrompt 组装系统提示词；命中知识库时拼入背景片段
func (g *Generator) systemPrompt(ctx context.Context, query string) string {
	if g.knowledge == nil {
		return SystemPrompt
	}

	snippets, err := g.knowledge.Retrieve(ctx, query, g.config.KnowledgeTopK)
	if err != nil {
		applog.Warn("[Generator] Knowledge retrieval failed", "error", err)
		return SystemPrompt
	}
	if len(snippets) == 0 {
		return SystemPrompt
	}

	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n# Background Knowledge\n")
	for _, s := range snippets {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

// systemForKey 计算参与缓存 key 的系统提示词。
// 开启时混入持久化摘要行，避免不同上下文共享同一答案。
func (g *Generator) systemForKey(convo []memory.Entry) string {
	if !g.config.IncludeSystemPrompt {
		return ""
	}
	for _, e := range convo {
		if e.Role == memory.RoleSystem && strings.HasPrefix(e.Content, memory.SummaryPrefix) {
			return SystemPrompt + "\n" + e.Content
		}
	}
	return SystemPrompt
}

// lastUserText 返回最近一条用户消息文本
func lastUserText(convo []memory.Entry) string {
	for i := len(convo) - 1; i >= 0; i-- {
		if convo[i].Role == memory.RoleUser && convo[i].Content != "" {
			return convo[i].Content
		}
	}
	return ""
}
