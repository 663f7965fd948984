package chat

import "context"

// RandSource 路由随机源，返回 [0, 1) 区间浮点数。可注入便于测试。
type RandSource func() float64

// SpeechSynthesizer 文本转语音
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ImageGenerator 文本生成图像，返回落盘路径
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, size string) (string, error)
}

// KnowledgeBase 人设知识库，按语义检索相关背景片段
type KnowledgeBase interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}
