package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"karanbot/internal/provider"
)

// Config OpenAI 兼容 API 配置
type Config struct {
	APIKey                     string `json:"api_key"`
	BaseURL                    string `json:"base_url"` // 默认 https://api.openai.com/v1
	ConnectTimeoutSeconds      int    `json:"connect_timeout_seconds"`
	TLSHandshakeTimeoutSeconds int    `json:"tls_handshake_timeout_seconds"`
}

// Provider OpenAI 兼容的 LLM Provider
// 支持所有 OpenAI API 兼容服务（OpenAI, Azure, DeepSeek, Ollama 等）
type Provider struct {
	config Config
	client *http.Client
}

// New 创建 OpenAI 兼容 Provider
func New(config Config) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	// 移除末尾斜杠
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	connectTimeout := time.Duration(config.ConnectTimeoutSeconds) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	tlsHandshakeTimeout := time.Duration(config.TLSHandshakeTimeoutSeconds) * time.Second
	if tlsHandshakeTimeout <= 0 {
		tlsHandshakeTimeout = 30 * time.Second
	}

	// Go 默认 Transport 的 TLS 握手超时为 10s，弱网下容易触发 handshake timeout。
	// 这里改为可配置，并保留通过 ctx 控制请求生命周期。
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = tlsHandshakeTimeout

	return &Provider{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

func (p *Provider) Name() string {
	return "openai"
}

// -- 内部 API 请求/响应结构 --

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	Stop        []string     `json:"stop,omitempty"`
}

type apiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string 或 多模态 part 列表
}

type apiContentPart struct {
	Type     string       `json:"type"` // text | image_url
	Text     string       `json:"text,omitempty"`
	ImageURL *apiImageURL `json:"image_url,omitempty"`
}

type apiImageURL struct {
	URL string `json:"url"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
	Model   string      `json:"model"`
}

type apiChoice struct {
	Message      apiResponseMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type apiResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complete 非流式补全
func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	apiReq := buildAPIRequest(req)
	apiResp, err := p.post(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := apiResp.Choices[0]
	return &provider.CompletionResponse{
		Content:      choice.Message.Content,
		Model:        apiResp.Model,
		FinishReason: choice.FinishReason,
		Usage: provider.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
	}, nil
}

// DescribeImage 调用视觉模型描述一张 JPEG 图片。
// prompt 为描述指令，image 为原始图片字节（以 data URL 内联）。
func (p *Provider) DescribeImage(ctx context.Context, model, prompt string, image []byte) (string, error) {
	b64 := base64.StdEncoding.EncodeToString(image)
	apiReq := &apiRequest{
		Model: model,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &apiImageURL{URL: "data:image/jpeg;base64," + b64}},
				},
			},
		},
	}

	apiResp, err := p.post(ctx, apiReq)
	if err != nil {
		return "", err
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

func (p *Provider) post(ctx context.Context, apiReq *apiRequest) (*apiResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &apiResp, nil
}

func buildAPIRequest(req *provider.CompletionRequest) *apiRequest {
	messages := make([]apiMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = apiMessage{Role: m.Role, Content: m.Content}
	}

	apiReq := &apiRequest{
		Model:    req.Model,
		Messages: messages,
	}

	if req.Temperature > 0 {
		t := req.Temperature
		apiReq.Temperature = &t
	}
	if req.MaxTokens > 0 {
		m := req.MaxTokens
		apiReq.MaxTokens = &m
	}
	if req.TopP > 0 {
		tp := req.TopP
		apiReq.TopP = &tp
	}
	if len(req.Stop) > 0 {
		apiReq.Stop = req.Stop
	}

	return apiReq
}
