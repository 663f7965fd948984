package chat

import (
	"math/rand"
	"strings"

	applog "karanbot/internal/platform/log"
)

// 关键词命中优先于随机分支；image 优先于 audio
var (
	imageKeywords = []string{"pic", "photo", "selfie", "image", "picture"}
	audioKeywords = []string{"voice", "audio", "hear", "voice note"}
)

// Router 按用户文本决定回复形态。
// 关键词匹配为确定性分支；否则按 audioChance 概率随机产出语音。
type Router struct {
	audioChance float64
	rand        RandSource
}

// NewRouter 创建路由器。audioChance 取 [0,1]，0 表示关闭随机语音。
func NewRouter(audioChance float64, randSource RandSource) *Router {
	if randSource == nil {
		randSource = rand.Float64
	}
	if audioChance < 0 {
		audioChance = 0
	}
	if audioChance > 1 {
		audioChance = 1
	}
	return &Router{
		audioChance: audioChance,
		rand:        randSource,
	}
}

// Route 决定单轮的回复形态
func (r *Router) Route(userText string) Modality {
	text := strings.ToLower(userText)

	if containsAny(text, imageKeywords) {
		applog.Debug("[Router] Image keyword matched", "text_length", len(userText))
		return ModalityImage
	}
	if containsAny(text, audioKeywords) {
		applog.Debug("[Router] Audio keyword matched", "text_length", len(userText))
		return ModalityAudio
	}

	if r.audioChance > 0 && r.rand() < r.audioChance {
		applog.Debug("[Router] Random audio branch taken", "audio_chance", r.audioChance)
		return ModalityAudio
	}
	return ModalityText
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
