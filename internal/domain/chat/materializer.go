package chat

import (
	"context"
	"fmt"

	applog "karanbot/internal/platform/log"
)

// Materializer 按路由形态把文本回复物化为语音或图像。
// 合成器未配置时保留形态但产出为空，由传输层兜底替换文案；
// 合成调用失败则返回错误，交由上层重试。
type Materializer struct {
	synthesizer SpeechSynthesizer
	imageGen    ImageGenerator
	imageSize   string
}

// NewMaterializer 创建物化器。synthesizer、imageGen 均可为 nil。
func NewMaterializer(synthesizer SpeechSynthesizer, imageGen ImageGenerator, imageSize string) *Materializer {
	if imageSize == "" {
		imageSize = "1024x1024"
	}
	return &Materializer{
		synthesizer: synthesizer,
		imageGen:    imageGen,
		imageSize:   imageSize,
	}
}

// Materialize 填充 TurnResult 的媒体产出
func (m *Materializer) Materialize(ctx context.Context, result *TurnResult) error {
	switch result.Modality {
	case ModalityAudio:
		if m.synthesizer == nil {
			applog.Warn("[Materializer] No synthesizer configured, audio turn degrades to text fallback")
			return nil
		}
		text := result.ReplyText
		if text == "" {
			text = AudioFallbackText
		}
		audio, err := m.synthesizer.Synthesize(ctx, text)
		if err != nil {
			return fmt.Errorf("synthesize reply: %w", err)
		}
		result.Audio = audio

	case ModalityImage:
		if m.imageGen == nil {
			applog.Warn("[Materializer] No image generator configured, image turn degrades to text fallback")
			return nil
		}
		// 固定人设提示词，保证多次生成形象一致
		path, err := m.imageGen.Generate(ctx, PersonaImagePrompt, m.imageSize)
		if err != nil {
			return fmt.Errorf("generate image: %w", err)
		}
		result.ImagePath = path
	}

	return nil
}
