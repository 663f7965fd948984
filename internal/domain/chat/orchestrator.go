package chat

import (
	"context"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	// WindowSize 滚动窗口上限，默认 30
	WindowSize int
	// Retry 整轮流水线的重试策略
	Retry RetryPolicy
}

// Orchestrator 串联一轮对话的完整生命周期：
// 组装上下文 -> 带重试执行流水线 -> 持久化落盘 -> 窗口维护与溢出摘要。
// 记忆侧故障只记日志不阻断回复。
type Orchestrator struct {
	config     OrchestratorConfig
	pipeline   *Pipeline
	window     memory.WindowStore
	durable    memory.DurableStore
	summarizer memory.Summarizer
}

// NewOrchestrator 创建编排器。durable、summarizer 可为 nil（关闭对应能力）。
func NewOrchestrator(
	config OrchestratorConfig,
	pipeline *Pipeline,
	window memory.WindowStore,
	durable memory.DurableStore,
	summarizer memory.Summarizer,
) *Orchestrator {
	if config.WindowSize <= 0 {
		config.WindowSize = 30
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryPolicy()
	}
	return &Orchestrator{
		config:     config,
		pipeline:   pipeline,
		window:     window,
		durable:    durable,
		summarizer: summarizer,
	}
}

// EnsureActors upsert 用户与会话档案；失败不阻断本轮
func (o *Orchestrator) EnsureActors(ctx context.Context, user memory.User, chat memory.Chat) {
	if o.durable == nil {
		return
	}
	if user.ID != 0 {
		if err := o.durable.UpsertUser(ctx, user); err != nil {
			applog.Warn("[Orchestrator] Upsert user failed", "user_id", user.ID, "error", err)
		}
	}
	if err := o.durable.UpsertChat(ctx, chat); err != nil {
		applog.Warn("[Orchestrator] Upsert chat failed", "chat_id", chat.ID, "error", err)
	}
}

// HandleTurn 处理一轮用户输入，返回物化完成的回复。
// 整个 路由->生成->物化 作为一个重试单元。
func (o *Orchestrator) HandleTurn(ctx context.Context, chatID int64, userText string) (*TurnResult, error) {
	convo := o.buildContext(ctx, chatID, userText)

	var result *TurnResult
	err := o.config.Retry.Do(ctx, "turn", func() error {
		var invokeErr error
		result, invokeErr = o.pipeline.Invoke(ctx, convo)
		return invokeErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FinishTurn 回复送出后的记忆维护：持久化落盘、窗口追加、溢出摘要。
// 所有失败记日志后吞掉，不影响已送出的回复。
func (o *Orchestrator) FinishTurn(ctx context.Context, chatID int64, userText string, result *TurnResult) {
	if o.durable != nil {
		if err := o.durable.AppendMessage(ctx, chatID, memory.RoleUser, userText); err != nil {
			applog.Warn("[Orchestrator] Persist user message failed", "chat_id", chatID, "error", err)
		}
		if err := o.durable.AppendMessage(ctx, chatID, memory.RoleAssistant, result.ReplyText); err != nil {
			applog.Warn("[Orchestrator] Persist reply failed", "chat_id", chatID, "error", err)
		}
	}

	if err := o.window.Append(ctx, chatID, memory.Entry{Role: memory.RoleUser, Content: userText}); err != nil {
		applog.Warn("[Orchestrator] Window append user failed", "chat_id", chatID, "error", err)
	}
	if err := o.window.Append(ctx, chatID, memory.Entry{Role: memory.RoleAssistant, Content: result.ReplyText}); err != nil {
		applog.Warn("[Orchestrator] Window append reply failed", "chat_id", chatID, "error", err)
	}

	o.maybeSummarize(ctx, chatID)
}

// buildContext 组装时间顺序上下文：摘要系统条目 + 窗口 + 当前用户消息。
// 读取失败降级为只带当前消息。
func (o *Orchestrator) buildContext(ctx context.Context, chatID int64, userText string) []memory.Entry {
	var convo []memory.Entry

	if o.durable != nil {
		summary, err := o.durable.GetSummary(ctx, chatID)
		if err != nil {
			applog.Warn("[Orchestrator] Load summary failed", "chat_id", chatID, "error", err)
		} else if summary != "" {
			convo = append(convo, memory.Entry{
				Role:    memory.RoleSystem,
				Content: memory.SummaryPrefix + summary,
			})
		}
	}

	entries, err := o.window.Read(ctx, chatID, o.config.WindowSize)
	if err != nil {
		applog.Warn("[Orchestrator] Load window failed", "chat_id", chatID, "error", err)
	} else {
		convo = append(convo, entries...)
	}

	convo = append(convo, memory.Entry{Role: memory.RoleUser, Content: userText})
	return convo
}

// maybeSummarize 窗口占满时做一次压缩：
// 摘要 -> 落盘 -> 清空窗口 -> 以单条摘要系统条目重新播种。
func (o *Orchestrator) maybeSummarize(ctx context.Context, chatID int64) {
	if o.summarizer == nil || o.durable == nil {
		return
	}

	// 多读几条以确认窗口确实占满
	entries, err := o.window.Read(ctx, chatID, o.config.WindowSize+5)
	if err != nil {
		applog.Warn("[Orchestrator] Read window for summarization failed", "chat_id", chatID, "error", err)
		return
	}
	if len(entries) < o.config.WindowSize {
		return
	}

	applog.Info("[Orchestrator] 📥 Window full, compressing",
		"chat_id", chatID,
		"entries", len(entries),
		"window_size", o.config.WindowSize,
	)

	summary, err := o.summarizer.Summarize(ctx, entries)
	if err != nil {
		applog.Warn("[Orchestrator] Summarization failed", "chat_id", chatID, "error", err)
		return
	}
	if summary == "" {
		return
	}

	if err := o.durable.SetSummary(ctx, chatID, summary); err != nil {
		applog.Warn("[Orchestrator] Save summary failed", "chat_id", chatID, "error", err)
		return
	}

	if err := o.window.Clear(ctx, chatID); err != nil {
		applog.Warn("[Orchestrator] Clear window failed", "chat_id", chatID, "error", err)
		return
	}
	if err := o.window.Append(ctx, chatID, memory.Entry{
		Role:    memory.RoleSystem,
		Content: memory.SummaryPrefix + summary,
	}); err != nil {
		applog.Warn("[Orchestrator] Re-seed window failed", "chat_id", chatID, "error", err)
	}
}
