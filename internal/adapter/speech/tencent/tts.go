package tencent

import (
	"context"
	"fmt"
	"sync"

	"github.com/tencentcloud/tencentcloud-speech-sdk-go/common"
	"github.com/tencentcloud/tencentcloud-speech-sdk-go/tts"

	applog "karanbot/internal/platform/log"
)

// TTSConfig 腾讯云语音合成配置
type TTSConfig struct {
	AppID     int64
	SecretID  string
	SecretKey string
	// VoiceType 音色 ID，默认 101001（智瑜）
	VoiceType int64
	// Codec 输出编码，默认 mp3
	Codec string
}

// TTSSynthesizer 腾讯云 WebSocket 流式语音合成适配器。
// 每次合成建立一条新的 ws 连接，聚合音频分片后整体返回。
type TTSSynthesizer struct {
	config TTSConfig
}

// NewTTS 创建腾讯云合成器
func NewTTS(config TTSConfig) *TTSSynthesizer {
	if config.VoiceType == 0 {
		config.VoiceType = 101001
	}
	if config.Codec == "" {
		config.Codec = "mp3"
	}
	return &TTSSynthesizer{config: config}
}

// ttsCollector 聚合流式合成结果
type ttsCollector struct {
	mu       sync.Mutex
	audio    []byte
	err      error
	doneOnce sync.Once
	done     chan struct{}
}

func newTTSCollector() *ttsCollector {
	return &ttsCollector{done: make(chan struct{})}
}

func (c *ttsCollector) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *ttsCollector) OnSynthesisStart(r *tts.SpeechWsSynthesisResponse) {}

func (c *ttsCollector) OnSynthesisEnd(r *tts.SpeechWsSynthesisResponse) {
	c.finish()
}

func (c *ttsCollector) OnAudioResult(data []byte) {
	c.mu.Lock()
	c.audio = append(c.audio, data...)
	c.mu.Unlock()
}

func (c *ttsCollector) OnTextResult(r *tts.SpeechWsSynthesisResponse) {}

func (c *ttsCollector) OnSynthesisFail(r *tts.SpeechWsSynthesisResponse, err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.finish()
}

// Synthesize 将文本合成为音频字节
func (s *TTSSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	credential := common.NewCredential(s.config.SecretID, s.config.SecretKey)
	collector := newTTSCollector()

	synthesizer := tts.NewSpeechWsSynthesizer(s.config.AppID, credential, collector)
	synthesizer.VoiceType = s.config.VoiceType
	synthesizer.Codec = s.config.Codec
	synthesizer.Text = text

	applog.Debug("[TTS/Tencent] Synthesizing",
		"voice_type", s.config.VoiceType,
		"codec", s.config.Codec,
		"text_length", len(text),
	)

	if err := synthesizer.Synthesis(); err != nil {
		applog.Error("[TTS/Tencent] ❌ Synthesis start failed", "error", err)
		return nil, fmt.Errorf("tencent tts synthesis: %w", err)
	}

	// Wait 阻塞到合成结束；ctx 取消时放弃等待
	waitDone := make(chan struct{})
	go func() {
		synthesizer.Wait()
		collector.finish()
		close(waitDone)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-collector.done:
	}

	collector.mu.Lock()
	audio, err := collector.audio, collector.err
	collector.mu.Unlock()

	if err != nil {
		applog.Error("[TTS/Tencent] ❌ Synthesis failed", "error", err)
		return nil, fmt.Errorf("tencent tts: %w", err)
	}

	applog.Info("[TTS/Tencent] ✅ Audio synthesized", "bytes", len(audio))
	return audio, nil
}
