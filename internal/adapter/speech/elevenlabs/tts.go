package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	applog "karanbot/internal/platform/log"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Config ElevenLabs 语音合成配置
type Config struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
	// ConnectTimeoutSeconds 连接超时（秒），默认 10
	ConnectTimeoutSeconds int
}

// Synthesizer ElevenLabs 语音合成适配器
type Synthesizer struct {
	config Config
	client *http.Client
}

// New 创建 ElevenLabs 合成器
func New(config Config) *Synthesizer {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ModelID == "" {
		config.ModelID = "eleven_flash_v2_5"
	}

	connectTimeout := 10 * time.Second
	if config.ConnectTimeoutSeconds > 0 {
		connectTimeout = time.Duration(config.ConnectTimeoutSeconds) * time.Second
	}

	// 不设整体超时，整体取消交由 ctx 控制；只限制建连阶段
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &Synthesizer{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Synthesize 将文本合成为音频字节（默认 mp3）
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": s.config.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.config.BaseURL, s.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.config.APIKey)

	applog.Debug("[TTS/ElevenLabs] Synthesizing",
		"voice_id", s.config.VoiceID,
		"model_id", s.config.ModelID,
		"text_length", len(text),
	)

	resp, err := s.client.Do(req)
	if err != nil {
		applog.Error("[TTS/ElevenLabs] ❌ Request failed", "error", err)
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		applog.Error("[TTS/ElevenLabs] ❌ API error",
			"status", resp.StatusCode,
			"body", truncate(string(audio), 300),
		)
		return nil, fmt.Errorf("elevenlabs API error (status %d)", resp.StatusCode)
	}

	applog.Info("[TTS/ElevenLabs] ✅ Audio synthesized", "bytes", len(audio))
	return audio, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
