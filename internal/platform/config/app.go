package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	Telegram  TelegramConfig  `json:"telegram"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Eleven    ElevenConfig    `json:"elevenlabs"`
	Tencent   TencentConfig   `json:"tencent"`
	Speech    SpeechConfig    `json:"speech"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Window    WindowConfig    `json:"window"`
	QACache   QACacheConfig   `json:"qa_cache"`
	Router    RouterConfig    `json:"router"`
	Retry     RetryConfig     `json:"retry"`
	Persona   PersonaConfig   `json:"persona"`
	Admin     AdminConfig     `json:"admin"`
	MediaDir  string          `json:"media_dir"`
}

type TelegramConfig struct {
	BotToken           string `json:"bot_token"`
	APIBase            string `json:"api_base"`
	PollTimeoutSeconds int    `json:"poll_timeout_seconds"`
}

type OpenAIConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	ImageModel string `json:"image_model"`
	EmbedModel string `json:"embed_model"`
	EmbedDims  int    `json:"embed_dims"`
}

type ElevenConfig struct {
	APIKey  string `json:"api_key"`
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`
}

type TencentConfig struct {
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	AppID     int64  `json:"app_id"`
	Region    string `json:"region"`
}

// SpeechConfig 语音供应商选择：TTS/STT 各自独立切换。
type SpeechConfig struct {
	TTSProvider string `json:"tts_provider"` // elevenlabs | tencent
	STTProvider string `json:"stt_provider"` // whisper | tencent
}

type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

type RedisConfig struct {
	URL     string `json:"url"`
	CacheDB int    `json:"cache_db"`
}

// WindowConfig 会话滚动窗口配置。
type WindowConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

// QACacheConfig 问答缓存配置。
type QACacheConfig struct {
	Enabled             bool   `json:"enabled"`
	Namespace           string `json:"namespace"`
	TTLSeconds          int    `json:"ttl_seconds"`
	MinChars            int    `json:"min_chars"`
	IncludeSystemPrompt bool   `json:"include_system_prompt"`
}

// RouterConfig 回复形态路由配置。
type RouterConfig struct {
	AudioChance float64 `json:"audio_chance"` // 0 关闭随机语音
}

// RetryConfig 模型调用重试配置。
type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts"`
	BaseDelaySeconds int `json:"base_delay_seconds"`
	MaxDelaySeconds  int `json:"max_delay_seconds"`
}

// PersonaConfig 人设知识库配置。
type PersonaConfig struct {
	Dir  string `json:"dir"`
	TopK int    `json:"top_k"`
}

type AdminConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	JWTSecret           string `json:"jwt_secret"`
	JWTIssuer           string `json:"jwt_issuer"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Telegram: TelegramConfig{
			APIBase:            "https://api.telegram.org",
			PollTimeoutSeconds: 30,
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			ImageModel: "gpt-image-1",
			EmbedModel: "text-embedding-3-large",
			EmbedDims:  1536,
		},
		Eleven: ElevenConfig{
			VoiceID: "T8lgQl6x5PSdhmmWx42m",
			ModelID: "eleven_flash_v2_5",
		},
		Tencent: TencentConfig{
			Region: "ap-singapore",
		},
		Speech: SpeechConfig{
			TTSProvider: "elevenlabs",
			STTProvider: "whisper",
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		Redis: RedisConfig{
			CacheDB: 1,
		},
		Window: WindowConfig{
			Size:       30,
			TTLSeconds: 86400,
		},
		QACache: QACacheConfig{
			Enabled:             true,
			Namespace:           "cache:qa",
			TTLSeconds:          6 * 3600,
			MinChars:            8,
			IncludeSystemPrompt: true,
		},
		Router: RouterConfig{
			AudioChance: 0.10,
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			BaseDelaySeconds: 1,
			MaxDelaySeconds:  8,
		},
		Persona: PersonaConfig{
			TopK: 3,
		},
		Admin: AdminConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
		},
		MediaDir: "media",
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	applyString("TELEGRAM_API_BASE", &c.Telegram.APIBase)
	applyInt("TELEGRAM_POLL_TIMEOUT", &c.Telegram.PollTimeoutSeconds)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	applyString("OPENAI_MODEL", &c.OpenAI.Model)
	applyString("OPENAI_IMAGE_MODEL", &c.OpenAI.ImageModel)
	applyString("OPENAI_EMBED_MODEL", &c.OpenAI.EmbedModel)
	applyInt("OPENAI_EMBED_DIMS", &c.OpenAI.EmbedDims)

	applyString("ELEVENLABS_API_KEY", &c.Eleven.APIKey)
	applyString("ELEVENLABS_VOICE_ID", &c.Eleven.VoiceID)
	applyString("ELEVENLABS_MODEL_ID", &c.Eleven.ModelID)

	applyString("TENCENT_SECRET_ID", &c.Tencent.SecretID)
	applyString("TENCENT_SECRET_KEY", &c.Tencent.SecretKey)
	applyInt64("TENCENT_APP_ID", &c.Tencent.AppID)
	applyString("TENCENT_REGION", &c.Tencent.Region)

	applyString("TTS_PROVIDER", &c.Speech.TTSProvider)
	applyString("STT_PROVIDER", &c.Speech.STTProvider)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)
	applyInt("REDIS_CACHE_DB", &c.Redis.CacheDB)

	applyInt("WINDOW_SIZE", &c.Window.Size)
	applyInt("WINDOW_TTL_SECONDS", &c.Window.TTLSeconds)

	applyBool("QA_CACHE_ENABLED", &c.QACache.Enabled)
	applyString("QA_CACHE_NAMESPACE", &c.QACache.Namespace)
	applyInt("QA_CACHE_TTL_SECONDS", &c.QACache.TTLSeconds)
	applyInt("QA_CACHE_MIN_CHARS", &c.QACache.MinChars)
	applyBool("QA_CACHE_INCLUDE_SYSTEM_PROMPT", &c.QACache.IncludeSystemPrompt)

	applyFloat64("ROUTER_AUDIO_CHANCE", &c.Router.AudioChance)

	applyInt("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	applyInt("RETRY_BASE_DELAY_SECONDS", &c.Retry.BaseDelaySeconds)
	applyInt("RETRY_MAX_DELAY_SECONDS", &c.Retry.MaxDelaySeconds)

	applyString("PERSONA_DIR", &c.Persona.Dir)
	applyInt("PERSONA_TOP_K", &c.Persona.TopK)

	applyString("ADMIN_HOST", &c.Admin.Host)
	applyInt("ADMIN_PORT", &c.Admin.Port)
	applyInt("ADMIN_READ_TIMEOUT", &c.Admin.ReadTimeoutSeconds)
	applyInt("ADMIN_WRITE_TIMEOUT", &c.Admin.WriteTimeoutSeconds)
	applyString("JWT_SECRET", &c.Admin.JWTSecret)
	applyString("JWT_ISSUER", &c.Admin.JWTIssuer)

	applyString("MEDIA_DIR", &c.MediaDir)
}

func (c *AppConfig) normalize() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	c.OpenAI.BaseURL = strings.TrimRight(c.OpenAI.BaseURL, "/")
	c.Telegram.APIBase = strings.TrimRight(c.Telegram.APIBase, "/")
	c.QACache.Namespace = strings.TrimRight(c.QACache.Namespace, ":")
	c.Speech.TTSProvider = strings.ToLower(strings.TrimSpace(c.Speech.TTSProvider))
	c.Speech.STTProvider = strings.ToLower(strings.TrimSpace(c.Speech.STTProvider))
	if c.Window.Size <= 0 {
		c.Window.Size = 30
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	switch c.Speech.TTSProvider {
	case "elevenlabs", "tencent":
	default:
		return fmt.Errorf("TTS_PROVIDER must be elevenlabs or tencent, got %q", c.Speech.TTSProvider)
	}
	switch c.Speech.STTProvider {
	case "whisper", "tencent":
	default:
		return fmt.Errorf("STT_PROVIDER must be whisper or tencent, got %q", c.Speech.STTProvider)
	}
	if c.Router.AudioChance < 0 || c.Router.AudioChance > 1 {
		return fmt.Errorf("ROUTER_AUDIO_CHANCE must be within [0,1], got %v", c.Router.AudioChance)
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyInt64(key string, target *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}
