package tencent

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	asr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/asr/v20190614"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	applog "karanbot/internal/platform/log"
)

// ASRConfig 腾讯云语音识别配置
type ASRConfig struct {
	SecretID  string
	SecretKey string
	// Region 默认 ap-guangzhou
	Region string
	// EngineType 识别引擎，默认 16k_en
	EngineType string
}

// Transcriber 腾讯云一句话识别适配器
type Transcriber struct {
	config ASRConfig
	client *asr.Client
}

// NewTranscriber 创建腾讯云识别器
func NewTranscriber(config ASRConfig) (*Transcriber, error) {
	if config.Region == "" {
		config.Region = "ap-guangzhou"
	}
	if config.EngineType == "" {
		config.EngineType = "16k_en"
	}

	credential := common.NewCredential(config.SecretID, config.SecretKey)
	client, err := asr.NewClient(credential, config.Region, profile.NewClientProfile())
	if err != nil {
		return nil, fmt.Errorf("create tencent asr client: %w", err)
	}

	return &Transcriber{config: config, client: client}, nil
}

// Transcribe 将语音字节转写为文本。filename 用于推断音频格式。
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	req := asr.NewSentenceRecognitionRequest()
	req.EngSerViceType = common.StringPtr(t.config.EngineType)
	req.SourceType = common.Uint64Ptr(1)
	req.VoiceFormat = common.StringPtr(voiceFormat(filename))
	req.Data = common.StringPtr(base64.StdEncoding.EncodeToString(audio))
	req.DataLen = common.Int64Ptr(int64(len(audio)))

	applog.Debug("[STT/Tencent] Transcribing",
		"engine", t.config.EngineType,
		"format", voiceFormat(filename),
		"bytes", len(audio),
	)

	resp, err := t.client.SentenceRecognitionWithContext(ctx, req)
	if err != nil {
		applog.Error("[STT/Tencent] ❌ Recognition failed", "error", err)
		return "", fmt.Errorf("tencent asr: %w", err)
	}
	if resp.Response == nil || resp.Response.Result == nil {
		return "", fmt.Errorf("tencent asr: empty response")
	}

	text := strings.TrimSpace(*resp.Response.Result)
	applog.Info("[STT/Tencent] ✅ Transcribed", "text_length", len(text))
	return text, nil
}

// voiceFormat 按文件扩展名推断 VoiceFormat，缺省 ogg-opus（Telegram 语音默认格式）
func voiceFormat(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".mp3"):
		return "mp3"
	case strings.HasSuffix(filename, ".wav"):
		return "wav"
	case strings.HasSuffix(filename, ".m4a"):
		return "m4a"
	default:
		return "ogg-opus"
	}
}
