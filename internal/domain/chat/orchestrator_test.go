package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"karanbot/internal/domain/chat"
	"karanbot/internal/domain/memory"
	"karanbot/internal/provider"
)

type turnFixture struct {
	orch       *chat.Orchestrator
	llm        *fakeProvider
	cache      *fakeCache
	window     *memory.InMemoryWindow
	durable    *fakeDurable
	summarizer *fakeSummarizer
	synth      *fakeSynthesizer
	imageGen   *fakeImageGen
}

func newTurnFixture(t *testing.T, windowSize int, randSource chat.RandSource) *turnFixture {
	t.Helper()

	llm := &fakeProvider{name: "fake-llm", reply: "Nice chatting with you!"}
	provider.RegisterProvider(llm)

	cache := newFakeCache()
	gen := chat.NewGenerator(chat.GeneratorConfig{
		ProviderName: "fake-llm",
		Model:        "gpt-4o-mini",
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}, cache, nil)

	synth := &fakeSynthesizer{}
	imageGen := &fakeImageGen{}
	pipeline := chat.NewPipeline(
		chat.NewRouter(0, randSource),
		gen,
		chat.NewMaterializer(synth, imageGen, ""),
	)

	window := memory.NewInMemoryWindow(windowSize, time.Hour)
	durable := newFakeDurable()
	summarizer := &fakeSummarizer{}

	orch := chat.NewOrchestrator(chat.OrchestratorConfig{
		WindowSize: windowSize,
		Retry: chat.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
		},
	}, pipeline, window, durable, summarizer)

	return &turnFixture{
		orch:       orch,
		llm:        llm,
		cache:      cache,
		window:     window,
		durable:    durable,
		summarizer: summarizer,
		synth:      synth,
		imageGen:   imageGen,
	}
}

func TestTurnSelfieProducesImage(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, nil)

	result, err := f.orch.HandleTurn(ctx, 1, "send me a selfie please")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if result.Modality != chat.ModalityImage {
		t.Fatalf("expected image modality, got %s", result.Modality)
	}
	if result.ImagePath == "" {
		t.Fatal("expected non-empty image path")
	}
	if f.imageGen.lastPrompt != chat.PersonaImagePrompt {
		t.Errorf("image must use the fixed persona prompt, got %q", f.imageGen.lastPrompt)
	}
	if result.ReplyText == "" {
		t.Error("image turn still needs caption text")
	}
	t.Logf("✅ Selfie turn produced %s", result.ImagePath)
}

func TestTurnVoiceProducesAudio(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, nil)

	result, err := f.orch.HandleTurn(ctx, 1, "can you send a voice note?")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if result.Modality != chat.ModalityAudio {
		t.Fatalf("expected audio modality, got %s", result.Modality)
	}
	if len(result.Audio) == 0 {
		t.Fatal("expected synthesized audio bytes")
	}
	if f.synth.lastText != result.ReplyText {
		t.Errorf("audio must narrate the generated reply, narrated %q", f.synth.lastText)
	}
}

func TestTurnTextFlowPersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, func() float64 { return 0.99 })

	result, err := f.orch.HandleTurn(ctx, 7, "tell me about your day at the summit")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if result.Modality != chat.ModalityText {
		t.Fatalf("expected text modality, got %s", result.Modality)
	}
	if f.llm.callCount() != 1 {
		t.Errorf("expected 1 LLM call, got %d", f.llm.callCount())
	}
	if f.cache.size() != 1 {
		t.Errorf("expected reply to be cached, got %d entries", f.cache.size())
	}

	f.orch.FinishTurn(ctx, 7, "tell me about your day at the summit", result)

	entries, err := f.window.Read(ctx, 7, 0)
	if err != nil {
		t.Fatalf("window read failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected user+assistant in window, got %d entries", len(entries))
	}
	if entries[0].Role != memory.RoleUser || entries[1].Role != memory.RoleAssistant {
		t.Errorf("unexpected window roles: %+v", entries)
	}
	if len(f.durable.messages) != 2 {
		t.Errorf("expected 2 persisted messages, got %d", len(f.durable.messages))
	}
}

func TestTurnRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, func() float64 { return 0.99 })
	f.llm.failFirst = 2

	result, err := f.orch.HandleTurn(ctx, 1, "are you still there?")
	if err != nil {
		t.Fatalf("expected recovery after transient failures, got %v", err)
	}
	if result.ReplyText == "" {
		t.Fatal("expected non-empty reply after retry")
	}
	if f.llm.callCount() != 3 {
		t.Errorf("expected 3 LLM attempts, got %d", f.llm.callCount())
	}
	t.Logf("✅ Turn recovered after %d attempts", f.llm.callCount())
}

func TestTurnFailsAfterExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, func() float64 { return 0.99 })
	f.llm.failFirst = 10

	if _, err := f.orch.HandleTurn(ctx, 1, "hello out there"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if f.llm.callCount() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", f.llm.callCount())
	}
}

func TestWindowOverflowTriggersSummarization(t *testing.T) {
	ctx := context.Background()
	const windowSize = 4
	f := newTurnFixture(t, windowSize, func() float64 { return 0.99 })

	// 每轮写入 2 条，两轮占满窗口触发压缩
	for i := 0; i < 2; i++ {
		text := fmt.Sprintf("long enough message number %d", i)
		result, err := f.orch.HandleTurn(ctx, 99, text)
		if err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
		f.orch.FinishTurn(ctx, 99, text, result)
	}

	if f.summarizer.calls != 1 {
		t.Fatalf("expected exactly 1 summarization, got %d", f.summarizer.calls)
	}
	if f.durable.summarySets != 1 {
		t.Fatalf("expected summary to be persisted once, got %d", f.durable.summarySets)
	}

	entries, err := f.window.Read(ctx, 99, 0)
	if err != nil {
		t.Fatalf("window read failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("window should hold only the seeded summary, got %d entries", len(entries))
	}
	if countSummaryEntries(entries) != 1 {
		t.Fatalf("expected a single summary entry, got %+v", entries)
	}
	t.Logf("✅ Window compressed to summary: %s", entries[0].Content)
}

func TestSummarySeedsNextContext(t *testing.T) {
	ctx := context.Background()
	f := newTurnFixture(t, 30, func() float64 { return 0.99 })

	f.durable.summaries[5] = "They already know each other."

	if _, err := f.orch.HandleTurn(ctx, 5, "so where were we?"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	req := f.llm.lastRequest()
	if req == nil {
		t.Fatal("expected an LLM call")
	}
	// persona 系统提示之后应注入摘要系统条目
	found := false
	for _, m := range req.Messages {
		if m.Role == memory.RoleSystem && m.Content == memory.SummaryPrefix+"They already know each other." {
			found = true
		}
	}
	if !found {
		t.Errorf("summary entry missing from context: %+v", req.Messages)
	}
}
