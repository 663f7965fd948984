package telegram

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"karanbot/internal/domain/chat"
)

type sentItem struct {
	kind string // message | voice | photo
	text string
	path string
}

type fakeSender struct {
	sent []sentItem
}

func (s *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.sent = append(s.sent, sentItem{kind: "message", text: text})
	return nil
}

func (s *fakeSender) SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error {
	s.sent = append(s.sent, sentItem{kind: "voice"})
	return nil
}

func (s *fakeSender) SendPhoto(ctx context.Context, chatID int64, filePath, caption string) error {
	s.sent = append(s.sent, sentItem{kind: "photo", path: filePath})
	return nil
}

func newSendHandler(sender Sender) *Handler {
	return NewHandler(HandlerConfig{}, nil, sender, nil, nil, nil)
}

func TestSendResultAudioFallback(t *testing.T) {
	sender := &fakeSender{}
	h := newSendHandler(sender)

	// 语音形态但没有音频产出 -> 兜底文案
	h.sendResult(context.Background(), 1, &chat.TurnResult{
		Modality:  chat.ModalityAudio,
		ReplyText: "some reply",
	})

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
	if sender.sent[0].kind != "message" || sender.sent[0].text != "Audio not available." {
		t.Errorf("expected audio fallback text, got %+v", sender.sent[0])
	}
}

func TestSendResultAudioDelivered(t *testing.T) {
	sender := &fakeSender{}
	h := newSendHandler(sender)

	h.sendResult(context.Background(), 1, &chat.TurnResult{
		Modality:  chat.ModalityAudio,
		ReplyText: "hello",
		Audio:     []byte("fake-audio"),
	})

	if len(sender.sent) != 1 || sender.sent[0].kind != "voice" {
		t.Fatalf("expected a voice send, got %+v", sender.sent)
	}
}

func TestSendResultImageFallback(t *testing.T) {
	sender := &fakeSender{}
	h := newSendHandler(sender)

	// 路径为空或文件不存在 -> 兜底文案
	for _, path := range []string{"", "/nonexistent/image.png"} {
		sender.sent = nil
		h.sendResult(context.Background(), 1, &chat.TurnResult{
			Modality:  chat.ModalityImage,
			ReplyText: "caption",
			ImagePath: path,
		})
		if len(sender.sent) != 1 || sender.sent[0].text != "Image not available." {
			t.Errorf("path %q: expected image fallback, got %+v", path, sender.sent)
		}
	}
}

func TestSendResultImageDelivered(t *testing.T) {
	sender := &fakeSender{}
	h := newSendHandler(sender)

	path := filepath.Join(t.TempDir(), "selfie.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write temp image: %v", err)
	}

	h.sendResult(context.Background(), 1, &chat.TurnResult{
		Modality:  chat.ModalityImage,
		ImagePath: path,
	})

	if len(sender.sent) != 1 || sender.sent[0].kind != "photo" {
		t.Fatalf("expected a photo send, got %+v", sender.sent)
	}
	if sender.sent[0].path != path {
		t.Errorf("expected photo path %q, got %q", path, sender.sent[0].path)
	}
	t.Logf("✅ Image delivered from %s", path)
}

func TestSendResultEmptyTextFallback(t *testing.T) {
	sender := &fakeSender{}
	h := newSendHandler(sender)

	h.sendResult(context.Background(), 1, &chat.TurnResult{
		Modality: chat.ModalityText,
	})

	if len(sender.sent) != 1 || sender.sent[0].text != chat.EmptyReplyFallback {
		t.Errorf("expected ellipsis fallback for empty text, got %+v", sender.sent)
	}
}
