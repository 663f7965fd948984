package memory_test

import (
	"strings"
	"testing"

	"karanbot/internal/domain/memory"
)

func TestCacheKeyNormalization(t *testing.T) {
	a := memory.CacheKey("cache:qa", "gpt-4o-mini", "sys", "  What's your name? ")
	b := memory.CacheKey("cache:qa", "gpt-4o-mini", "sys", "what's your NAME?")

	if a != b {
		t.Errorf("keys differing only by case/whitespace should match:\n  %s\n  %s", a, b)
	}
	if !strings.HasPrefix(a, "cache:qa:") {
		t.Errorf("key should carry namespace prefix, got %s", a)
	}
	t.Logf("✅ normalized key: %s", a)
}

func TestCacheKeyComponents(t *testing.T) {
	base := memory.CacheKey("cache:qa", "gpt-4o-mini", "sys", "hello there")

	if got := memory.CacheKey("cache:qa", "gpt-4o", "sys", "hello there"); got == base {
		t.Error("different model should produce a different key")
	}
	if got := memory.CacheKey("cache:qa", "gpt-4o-mini", "other sys", "hello there"); got == base {
		t.Error("different system prompt should produce a different key")
	}
	if got := memory.CacheKey("cache:qa", "gpt-4o-mini", "", "hello there"); got == base {
		t.Error("omitting the system prompt should produce a different key")
	}
	if got := memory.CacheKey("cache:qa", "gpt-4o-mini", "sys", "hello friend"); got == base {
		t.Error("different user text should produce a different key")
	}
}

func TestCacheKeyNamespaceTrim(t *testing.T) {
	a := memory.CacheKey("cache:qa:", "m", "", "some question here")
	b := memory.CacheKey("cache:qa", "m", "", "some question here")
	if a != b {
		t.Errorf("trailing colon in namespace should be ignored:\n  %s\n  %s", a, b)
	}
}
