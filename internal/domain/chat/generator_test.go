package chat_test

import (
	"context"
	"testing"
	"time"

	"karanbot/internal/domain/chat"
	"karanbot/internal/domain/memory"
	"karanbot/internal/provider"
)

func newTestGenerator(t *testing.T, reply string, cfg chat.GeneratorConfig) (*chat.Generator, *fakeProvider, *fakeCache) {
	t.Helper()

	llm := &fakeProvider{name: "fake-llm", reply: reply}
	provider.RegisterProvider(llm)

	cache := newFakeCache()
	cfg.ProviderName = "fake-llm"
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return chat.NewGenerator(cfg, cache, nil), llm, cache
}

func userTurn(text string) []memory.Entry {
	return []memory.Entry{{Role: memory.RoleUser, Content: text}}
}

func TestGeneratorCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	gen, llm, cache := newTestGenerator(t, "Doing great, thanks!", chat.GeneratorConfig{
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	})

	reply, hit, err := gen.Generate(ctx, userTurn("how is the summit going?"))
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if hit {
		t.Fatal("first call should miss the cache")
	}
	if reply != "Doing great, thanks!" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if cache.size() != 1 {
		t.Fatalf("expected 1 cached answer, got %d", cache.size())
	}

	// 大小写与首尾空白归一化后命中同一条
	reply2, hit2, err := gen.Generate(ctx, userTurn("  HOW IS THE SUMMIT GOING?  "))
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if !hit2 {
		t.Fatal("normalized repeat should hit the cache")
	}
	if reply2 != reply {
		t.Errorf("cache returned different answer: %q vs %q", reply2, reply)
	}
	if llm.callCount() != 1 {
		t.Errorf("expected exactly 1 LLM call, got %d", llm.callCount())
	}
	t.Logf("✅ Cache hit on normalized repeat, single LLM call")
}

func TestGeneratorMinCharsGate(t *testing.T) {
	ctx := context.Background()
	gen, llm, cache := newTestGenerator(t, "hey!", chat.GeneratorConfig{
		CacheEnabled:  true,
		CacheMinChars: 8,
	})

	// 短消息不参与缓存
	for i := 0; i < 2; i++ {
		if _, hit, err := gen.Generate(ctx, userTurn("hi")); err != nil {
			t.Fatalf("generate failed: %v", err)
		} else if hit {
			t.Fatal("short message must never hit the cache")
		}
	}

	if cache.size() != 0 {
		t.Errorf("short messages must not be cached, got %d entries", cache.size())
	}
	if llm.callCount() != 2 {
		t.Errorf("expected 2 LLM calls for uncached turns, got %d", llm.callCount())
	}
}

func TestGeneratorCacheDisabled(t *testing.T) {
	ctx := context.Background()
	gen, llm, cache := newTestGenerator(t, "sure thing", chat.GeneratorConfig{
		CacheEnabled: false,
	})

	for i := 0; i < 2; i++ {
		if _, _, err := gen.Generate(ctx, userTurn("tell me about your work")); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
	}
	if cache.size() != 0 {
		t.Errorf("cache disabled but %d entries stored", cache.size())
	}
	if llm.callCount() != 2 {
		t.Errorf("expected 2 LLM calls with cache disabled, got %d", llm.callCount())
	}
}

func TestGeneratorSummaryIsolatesCacheKey(t *testing.T) {
	ctx := context.Background()
	gen, llm, cache := newTestGenerator(t, "context-aware answer", chat.GeneratorConfig{
		CacheEnabled:        true,
		IncludeSystemPrompt: true,
	})

	question := memory.Entry{Role: memory.RoleUser, Content: "what did we talk about?"}

	if _, _, err := gen.Generate(ctx, []memory.Entry{question}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	// 带摘要的上下文应产生不同的缓存 key
	withSummary := []memory.Entry{
		{Role: memory.RoleSystem, Content: memory.SummaryPrefix + "They discussed ML deployments."},
		question,
	}
	_, hit, err := gen.Generate(ctx, withSummary)
	if err != nil {
		t.Fatalf("generate with summary failed: %v", err)
	}
	if hit {
		t.Error("different summary context must not share a cache entry")
	}
	if cache.size() != 2 {
		t.Errorf("expected 2 distinct cache entries, got %d", cache.size())
	}
	if llm.callCount() != 2 {
		t.Errorf("expected 2 LLM calls, got %d", llm.callCount())
	}
}

func TestGeneratorEmptyReplyFallback(t *testing.T) {
	ctx := context.Background()
	gen, _, _ := newTestGenerator(t, "   ", chat.GeneratorConfig{})

	reply, _, err := gen.Generate(ctx, userTurn("say nothing"))
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if reply != chat.EmptyReplyFallback {
		t.Errorf("expected fallback %q for blank reply, got %q", chat.EmptyReplyFallback, reply)
	}
}

func TestGeneratorSystemPromptLeads(t *testing.T) {
	ctx := context.Background()
	gen, llm, _ := newTestGenerator(t, "ok", chat.GeneratorConfig{})

	convo := []memory.Entry{
		{Role: memory.RoleUser, Content: "first"},
		{Role: memory.RoleAssistant, Content: "second"},
		{Role: memory.RoleUser, Content: "third message here"},
	}
	if _, _, err := gen.Generate(ctx, convo); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	req := llm.lastRequest()
	if req == nil || len(req.Messages) != 4 {
		t.Fatalf("expected 4 messages (system + convo), got %+v", req)
	}
	if req.Messages[0].Role != memory.RoleSystem {
		t.Errorf("first message should be the system prompt, got role %s", req.Messages[0].Role)
	}
	if req.Messages[3].Content != "third message here" {
		t.Errorf("conversation order not preserved: %+v", req.Messages)
	}
}
