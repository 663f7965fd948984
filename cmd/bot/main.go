package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	openaiimg "karanbot/internal/adapter/image/openai"
	openaillm "karanbot/internal/adapter/provider/llm/openai"
	"karanbot/internal/adapter/speech/elevenlabs"
	"karanbot/internal/adapter/speech/tencent"
	"karanbot/internal/adapter/speech/whisper"
	"karanbot/internal/api"
	"karanbot/internal/db/postgres"
	redisdb "karanbot/internal/db/redis"
	"karanbot/internal/domain/chat"
	"karanbot/internal/domain/memory"
	"karanbot/internal/domain/persona"
	"karanbot/internal/platform/config"
	applog "karanbot/internal/platform/log"
	"karanbot/internal/provider"
	"karanbot/internal/transport/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// ── PostgreSQL 持久化 ────────────────────────────────────
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.Ping(); err != nil {
		applog.Fatalf("❌ Failed to ping database: %v", err)
	}
	applog.Info("✅ Connected to PostgreSQL")

	durable := postgres.NewStore(db)
	ensureCtx, ensureCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := durable.EnsureTables(ensureCtx); err != nil {
		applog.Warnf("⚠️  Failed to ensure durable tables: %v", err)
	}
	ensureCancel()

	// ── Redis 窗口与问答缓存 ─────────────────────────────────
	window, replyCache := initRedis(cfg)

	// ── LLM 供应商 ───────────────────────────────────────────
	llmClient := openaillm.New(openaillm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	provider.RegisterProvider(llmClient)
	applog.Infof("✅ LLM provider registered (model: %s)", cfg.OpenAI.Model)

	// ── 语音与图像适配器 ─────────────────────────────────────
	synthesizer := initSynthesizer(cfg)
	transcriber := initTranscriber(cfg)

	imageGen := openaiimg.New(openaiimg.Config{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.ImageModel,
		OutputDir: cfg.MediaDir,
	})

	// ── 人设知识库（可选）──────────────────────────────────
	knowledge := initKnowledge(cfg)

	// ── 对话流水线 ───────────────────────────────────────────
	generator := chat.NewGenerator(chat.GeneratorConfig{
		Model:               cfg.OpenAI.Model,
		CacheEnabled:        cfg.QACache.Enabled,
		CacheNamespace:      cfg.QACache.Namespace,
		CacheTTL:            time.Duration(cfg.QACache.TTLSeconds) * time.Second,
		CacheMinChars:       cfg.QACache.MinChars,
		IncludeSystemPrompt: cfg.QACache.IncludeSystemPrompt,
		KnowledgeTopK:       cfg.Persona.TopK,
	}, replyCache, knowledge)

	pipeline := chat.NewPipeline(
		chat.NewRouter(cfg.Router.AudioChance, nil),
		generator,
		chat.NewMaterializer(synthesizer, imageGen, ""),
	)

	summarizer := memory.NewLLMSummaryGenerator("openai", cfg.OpenAI.Model)

	orch := chat.NewOrchestrator(chat.OrchestratorConfig{
		WindowSize: cfg.Window.Size,
		Retry: chat.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		},
	}, pipeline, window, durable, summarizer)

	// ── Telegram 接入 ────────────────────────────────────────
	tgClient := telegram.NewClient(nil, cfg.Telegram.APIBase, cfg.Telegram.BotToken)
	handler := telegram.NewHandler(telegram.HandlerConfig{
		VisionModel: cfg.OpenAI.Model,
	}, orch, tgClient, tgClient, transcriber, llmClient)

	poller := telegram.NewPoller(telegram.PollerConfig{
		PollTimeout: time.Duration(cfg.Telegram.PollTimeoutSeconds) * time.Second,
	}, tgClient, handler)

	// ── 运维 API ─────────────────────────────────────────────
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Admin.Host
	serverConfig.Port = cfg.Admin.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Admin.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Admin.WriteTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Admin.JWTSecret
	serverConfig.JWTIssuer = cfg.Admin.JWTIssuer
	server := api.NewServer(serverConfig, window, durable, replyCache)

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			applog.Errorf("❌ Ops API server error: %v", err)
		}
	}()

	// ── 信号处理与主循环 ─────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		cancel()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := server.Stop(stopCtx); err != nil {
			applog.Errorf("❌ Ops API shutdown error: %v", err)
		}
	}()

	if err := poller.Run(ctx); err != nil {
		applog.Fatalf("❌ Telegram poller error: %v", err)
	}

	applog.Info("👋 Bot stopped")
}

// initRedis 建立窗口存储与问答缓存（缓存走独立逻辑库）
func initRedis(cfg *config.AppConfig) (memory.WindowStore, memory.ReplyCache) {
	opt, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Fatalf("❌ Invalid REDIS_URL: %v", err)
	}

	windowClient := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := windowClient.Ping(ctx).Err(); err != nil {
		applog.Fatalf("❌ Redis connection failed: %v", err)
	}
	applog.Info("✅ Connected to Redis")

	window := redisdb.NewWindowStore(redisdb.WindowStoreConfig{
		Client: windowClient,
		Size:   cfg.Window.Size,
		TTL:    time.Duration(cfg.Window.TTLSeconds) * time.Second,
	})

	cacheOpt := *opt
	cacheOpt.DB = cfg.Redis.CacheDB
	cacheClient := goredis.NewClient(&cacheOpt)
	cache := redisdb.NewReplyCache(cacheClient, cfg.QACache.Namespace)

	applog.Infof("✅ Memory stores ready (window: %d entries / %ds TTL, cache db: %d)",
		cfg.Window.Size, cfg.Window.TTLSeconds, cfg.Redis.CacheDB)
	return window, cache
}

// initSynthesizer 按配置选择 TTS 供应商
func initSynthesizer(cfg *config.AppConfig) chat.SpeechSynthesizer {
	switch cfg.Speech.TTSProvider {
	case "tencent":
		applog.Info("✅ TTS provider: Tencent Cloud")
		return tencent.NewTTS(tencent.TTSConfig{
			AppID:     cfg.Tencent.AppID,
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
		})
	default:
		applog.Infof("✅ TTS provider: ElevenLabs (voice: %s)", cfg.Eleven.VoiceID)
		return elevenlabs.New(elevenlabs.Config{
			APIKey:  cfg.Eleven.APIKey,
			VoiceID: cfg.Eleven.VoiceID,
			ModelID: cfg.Eleven.ModelID,
		})
	}
}

// initTranscriber 按配置选择 STT 供应商
func initTranscriber(cfg *config.AppConfig) telegram.Transcriber {
	switch cfg.Speech.STTProvider {
	case "tencent":
		t, err := tencent.NewTranscriber(tencent.ASRConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
		})
		if err != nil {
			applog.Fatalf("❌ Failed to init Tencent ASR: %v", err)
		}
		applog.Info("✅ STT provider: Tencent Cloud")
		return t
	default:
		applog.Info("✅ STT provider: Whisper")
		return whisper.New(whisper.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}
}

// initKnowledge 加载人设资料目录；未配置时返回 nil
func initKnowledge(cfg *config.AppConfig) chat.KnowledgeBase {
	if cfg.Persona.Dir == "" {
		applog.Info("ℹ️  No PERSONA_DIR set, persona knowledge disabled")
		return nil
	}

	embedder := persona.NewOpenAIEmbedder(persona.OpenAIEmbedderConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.EmbedModel,
		Dims:    cfg.OpenAI.EmbedDims,
	})

	knowledge, err := persona.NewKnowledge(embedder, persona.KnowledgeConfig{})
	if err != nil {
		applog.Warnf("⚠️  Failed to init persona knowledge: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := knowledge.LoadDir(ctx, cfg.Persona.Dir, 0); err != nil {
		applog.Warnf("⚠️  Failed to load persona documents: %v", err)
		return nil
	}

	applog.Infof("✅ Persona knowledge loaded (dir: %s, top_k: %d)", cfg.Persona.Dir, cfg.Persona.TopK)
	return knowledge
}
