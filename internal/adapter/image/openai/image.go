package openaiimg

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "karanbot/internal/platform/log"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config OpenAI 图像生成配置
type Config struct {
	APIKey  string
	BaseURL string
	// Model 默认 gpt-image-1
	Model string
	// OutputDir 生成图片的落盘目录，默认 ./media
	OutputDir string
	// ConnectTimeoutSeconds 连接超时（秒），默认 10
	ConnectTimeoutSeconds int
}

// Generator OpenAI 图像生成适配器。
// 响应为 base64 编码，解码后写入本地文件并返回路径。
type Generator struct {
	config Config
	client *http.Client
}

// New 创建图像生成器
func New(config Config) *Generator {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = "gpt-image-1"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./media"
	}

	connectTimeout := 10 * time.Second
	if config.ConnectTimeoutSeconds > 0 {
		connectTimeout = time.Duration(config.ConnectTimeoutSeconds) * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext

	return &Generator{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Generate 生成图像并落盘，返回本地文件路径
func (g *Generator) Generate(ctx context.Context, prompt, size string) (string, error) {
	if size == "" {
		size = "1024x1024"
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":   g.config.Model,
		"prompt":  prompt,
		"size":    size,
		"quality": "high",
	})
	if err != nil {
		return "", fmt.Errorf("marshal image request: %w", err)
	}

	url := g.config.BaseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	applog.Info("[Image/OpenAI] 🚀 Generating image",
		"model", g.config.Model,
		"size", size,
		"prompt_length", len(prompt),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		applog.Error("[Image/OpenAI] ❌ Request failed", "error", err)
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read image response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		applog.Error("[Image/OpenAI] ❌ API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 300),
		)
		return "", fmt.Errorf("image API error (status %d)", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return "", fmt.Errorf("image response contains no data")
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("decode image payload: %w", err)
	}

	if err := os.MkdirAll(g.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(g.config.OutputDir, uuid.New().String()+".png")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}

	applog.Info("[Image/OpenAI] ✅ Image saved", "path", path, "bytes", len(raw))
	return path, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
