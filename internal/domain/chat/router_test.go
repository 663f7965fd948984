package chat_test

import (
	"testing"

	"karanbot/internal/domain/chat"
)

func TestRouterImageKeywords(t *testing.T) {
	// 关键词分支是确定性的，随机源返回什么都不影响结果
	r := chat.NewRouter(1.0, func() float64 { return 0 })

	cases := []string{
		"send me a pic",
		"Can I see a PHOTO of you?",
		"selfie time!",
		"show me an image",
		"got a picture?",
	}
	for _, text := range cases {
		if got := r.Route(text); got != chat.ModalityImage {
			t.Errorf("Route(%q) = %s, expected image", text, got)
		}
	}
	t.Logf("✅ All image keywords routed deterministically")
}

func TestRouterAudioKeywords(t *testing.T) {
	r := chat.NewRouter(0, func() float64 { return 0.99 })

	cases := []string{
		"send a voice note",
		"I want to hear you",
		"can you do audio?",
		"let me hear your VOICE",
	}
	for _, text := range cases {
		if got := r.Route(text); got != chat.ModalityAudio {
			t.Errorf("Route(%q) = %s, expected audio", text, got)
		}
	}
}

func TestRouterImageBeatsAudio(t *testing.T) {
	r := chat.NewRouter(0, nil)

	// 同时命中两类关键词时 image 优先
	if got := r.Route("send a photo with your voice"); got != chat.ModalityImage {
		t.Errorf("expected image to win over audio, got %s", got)
	}
}

func TestRouterRandomBranch(t *testing.T) {
	// 随机值低于阈值 -> audio
	r := chat.NewRouter(0.10, func() float64 { return 0.05 })
	if got := r.Route("how was your day"); got != chat.ModalityAudio {
		t.Errorf("expected random audio branch, got %s", got)
	}

	// 随机值高于阈值 -> text
	r = chat.NewRouter(0.10, func() float64 { return 0.95 })
	if got := r.Route("how was your day"); got != chat.ModalityText {
		t.Errorf("expected text branch, got %s", got)
	}

	// 关闭随机分支后永远 text
	r = chat.NewRouter(0, func() float64 { return 0.0 })
	if got := r.Route("how was your day"); got != chat.ModalityText {
		t.Errorf("expected text with audio chance disabled, got %s", got)
	}
}
