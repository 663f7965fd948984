package telegram

import (
	"context"
	"os"
	"strings"

	"karanbot/internal/domain/chat"
	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// 物化产出缺失时的兜底文案
const (
	audioUnavailableText = "Audio not available."
	imageUnavailableText = "Image not available."
)

// visionPrompt 图片理解的固定提示词
const visionPrompt = "Describe the picture briefly."

// Sender 消息发送端（便于测试替换）
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error
	SendPhoto(ctx context.Context, chatID int64, filePath, caption string) error
}

// FileFetcher 附件下载端
type FileFetcher interface {
	GetFile(ctx context.Context, fileID string) (*File, error)
	DownloadFile(ctx context.Context, filePath string, maxBytes int64) ([]byte, error)
}

// Transcriber 语音转文字
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// VisionDescriber 图片理解
type VisionDescriber interface {
	DescribeImage(ctx context.Context, model, prompt string, image []byte) (string, error)
}

// HandlerConfig 消息处理配置
type HandlerConfig struct {
	// VisionModel 图片理解模型，默认 gpt-4o-mini
	VisionModel string
	// MaxFileBytes 附件下载上限，默认 20MB
	MaxFileBytes int64
}

// Handler 把 Telegram 消息接入对话编排器。
// 语音先转写、图片先做视觉描述，统一转成文本轮次处理。
type Handler struct {
	config      HandlerConfig
	orch        *chat.Orchestrator
	sender      Sender
	files       FileFetcher
	transcriber Transcriber
	vision      VisionDescriber
}

// NewHandler 创建处理器。transcriber、vision 可为 nil（对应消息类型降级）。
func NewHandler(
	config HandlerConfig,
	orch *chat.Orchestrator,
	sender Sender,
	files FileFetcher,
	transcriber Transcriber,
	vision VisionDescriber,
) *Handler {
	if config.VisionModel == "" {
		config.VisionModel = "gpt-4o-mini"
	}
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = 20 * 1024 * 1024
	}
	return &Handler{
		config:      config,
		orch:        orch,
		sender:      sender,
		files:       files,
		transcriber: transcriber,
		vision:      vision,
	}
}

// Handle 处理单条消息
func (h *Handler) Handle(ctx context.Context, msg *Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		if err := h.sender.SendMessage(ctx, chatID, chat.Greeting); err != nil {
			applog.Error("[Telegram] ❌ Failed to send greeting", "chat_id", chatID, "error", err)
		}
		return

	case msg.Voice != nil:
		h.handleVoice(ctx, msg)

	case len(msg.Photo) > 0:
		h.handlePhoto(ctx, msg)

	case msg.Text != "":
		h.runTurn(ctx, msg, msg.Text)
	}
}

// handleVoice 下载语音并转写为文本轮次
func (h *Handler) handleVoice(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	if h.transcriber == nil {
		applog.Warn("[Telegram] Voice message ignored, no transcriber configured", "chat_id", chatID)
		return
	}

	audio, err := h.downloadAttachment(ctx, msg.Voice.FileID)
	if err != nil {
		applog.Error("[Telegram] ❌ Voice download failed", "chat_id", chatID, "error", err)
		return
	}

	text, err := h.transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		applog.Error("[Telegram] ❌ Voice transcription failed", "chat_id", chatID, "error", err)
		return
	}
	if text == "" {
		return
	}

	h.runTurn(ctx, msg, text)
}

// handlePhoto 下载最高档位图片做视觉描述，拼入用户消息
func (h *Handler) handlePhoto(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	if h.vision == nil {
		applog.Warn("[Telegram] Photo message ignored, no vision model configured", "chat_id", chatID)
		return
	}

	// 最后一个档位分辨率最高
	photo := msg.Photo[len(msg.Photo)-1]
	image, err := h.downloadAttachment(ctx, photo.FileID)
	if err != nil {
		applog.Error("[Telegram] ❌ Photo download failed", "chat_id", chatID, "error", err)
		return
	}

	desc, err := h.vision.DescribeImage(ctx, h.config.VisionModel, visionPrompt, image)
	if err != nil {
		applog.Error("[Telegram] ❌ Photo description failed", "chat_id", chatID, "error", err)
		return
	}

	userMsg := strings.TrimSpace(msg.Caption + " [IMAGE_ANALYSIS] " + desc)
	h.runTurn(ctx, msg, userMsg)
}

// runTurn 完整一轮：身份 upsert -> 流水线 -> 发送 -> 记忆维护
func (h *Handler) runTurn(ctx context.Context, msg *Message, userText string) {
	chatID := msg.Chat.ID

	h.orch.EnsureActors(ctx, actorUser(msg.From), actorChat(msg))

	result, err := h.orch.HandleTurn(ctx, chatID, userText)
	if err != nil {
		applog.Error("[Telegram] ❌ Turn failed", "chat_id", chatID, "error", err)
		return
	}

	h.sendResult(ctx, chatID, result)
	h.orch.FinishTurn(ctx, chatID, userText, result)
}

// sendResult 按形态发送回复；媒体缺失时替换为兜底文案
func (h *Handler) sendResult(ctx context.Context, chatID int64, result *chat.TurnResult) {
	var err error
	switch result.Modality {
	case chat.ModalityAudio:
		if len(result.Audio) > 0 {
			err = h.sender.SendVoice(ctx, chatID, result.Audio, "voice.mp3")
		} else {
			err = h.sender.SendMessage(ctx, chatID, audioUnavailableText)
		}

	case chat.ModalityImage:
		if result.ImagePath != "" && fileExists(result.ImagePath) {
			err = h.sender.SendPhoto(ctx, chatID, result.ImagePath, "")
		} else {
			err = h.sender.SendMessage(ctx, chatID, imageUnavailableText)
		}

	default:
		text := result.ReplyText
		if text == "" {
			text = chat.EmptyReplyFallback
		}
		err = h.sender.SendMessage(ctx, chatID, text)
	}

	if err != nil {
		applog.Error("[Telegram] ❌ Failed to send reply",
			"chat_id", chatID,
			"modality", result.Modality,
			"error", err,
		)
	}
}

func (h *Handler) downloadAttachment(ctx context.Context, fileID string) ([]byte, error) {
	file, err := h.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return h.files.DownloadFile(ctx, file.FilePath, h.config.MaxFileBytes)
}

func actorUser(u *UserInfo) memory.User {
	if u == nil {
		return memory.User{}
	}
	return memory.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

func actorChat(msg *Message) memory.Chat {
	c := memory.Chat{
		ID:    msg.Chat.ID,
		Type:  msg.Chat.Type,
		Title: msg.Chat.Title,
	}
	if msg.Chat.Type == "private" && msg.From != nil {
		c.UserID = msg.From.ID
	}
	return c
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
