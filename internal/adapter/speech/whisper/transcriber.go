package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	applog "karanbot/internal/platform/log"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config Whisper 语音识别配置
type Config struct {
	APIKey  string
	BaseURL string
	// Model 默认 whisper-1
	Model string
	// ConnectTimeoutSeconds 连接超时（秒），默认 10
	ConnectTimeoutSeconds int
}

// Transcriber 基于 OpenAI /audio/transcriptions 的语音识别适配器
type Transcriber struct {
	config Config
	client *http.Client
}

// New 创建 Whisper 识别器
func New(config Config) *Transcriber {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "whisper-1"
	}

	connectTimeout := 10 * time.Second
	if config.ConnectTimeoutSeconds > 0 {
		connectTimeout = time.Duration(config.ConnectTimeoutSeconds) * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &Transcriber{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Transcribe 将语音字节转写为文本。filename 用于提示音频格式（如 voice.ogg）。
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "audio.ogg"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write multipart file: %w", err)
	}
	if err := writer.WriteField("model", t.config.Model); err != nil {
		return "", fmt.Errorf("write multipart field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := t.config.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)

	applog.Debug("[STT/Whisper] Transcribing", "model", t.config.Model, "bytes", len(audio))

	resp, err := t.client.Do(req)
	if err != nil {
		applog.Error("[STT/Whisper] ❌ Request failed", "error", err)
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		applog.Error("[STT/Whisper] ❌ API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 300),
		)
		return "", fmt.Errorf("whisper API error (status %d)", resp.StatusCode)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}

	text := strings.TrimSpace(parsed.Text)
	applog.Info("[STT/Whisper] ✅ Transcribed", "text_length", len(text))
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
