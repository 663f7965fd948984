package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"karanbot/internal/domain/memory"
)

func TestInMemoryWindowCap(t *testing.T) {
	ctx := context.Background()
	w := memory.NewInMemoryWindow(5, time.Hour)

	for i := 0; i < 9; i++ {
		err := w.Append(ctx, 1001, memory.Entry{Role: memory.RoleUser, Content: fmt.Sprintf("msg-%d", i)})
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	entries, err := w.Read(ctx, 1001, 100)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected at most 5 entries after overflow, got %d", len(entries))
	}

	// 淘汰最旧条目后，剩余应为 msg-4 .. msg-8，按时间顺序
	for i, e := range entries {
		want := fmt.Sprintf("msg-%d", i+4)
		if e.Content != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, e.Content)
		}
	}
	t.Logf("✅ Window trimmed to %d entries", len(entries))
}

func TestInMemoryWindowReadLimit(t *testing.T) {
	ctx := context.Background()
	w := memory.NewInMemoryWindow(10, time.Hour)

	for i := 0; i < 6; i++ {
		_ = w.Append(ctx, 7, memory.Entry{Role: memory.RoleAssistant, Content: fmt.Sprintf("r-%d", i)})
	}

	entries, err := w.Read(ctx, 7, 3)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// 应返回最新的 3 条，按时间顺序
	if entries[0].Content != "r-3" || entries[2].Content != "r-5" {
		t.Errorf("unexpected window slice: %+v", entries)
	}
}

func TestInMemoryWindowClear(t *testing.T) {
	ctx := context.Background()
	w := memory.NewInMemoryWindow(10, time.Hour)

	_ = w.Append(ctx, 42, memory.Entry{Role: memory.RoleUser, Content: "hello"})
	if err := w.Clear(ctx, 42); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	entries, err := w.Read(ctx, 42, 0)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty window after clear, got %d entries", len(entries))
	}
}
