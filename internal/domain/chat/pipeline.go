package chat

import (
	"context"
	"fmt"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// Pipeline 单轮处理流水线：路由 -> 生成 -> 物化。
// 状态线性推进，任一阶段失败整轮失败，由调用方整体重试。
type Pipeline struct {
	router       *Router
	generator    *Generator
	materializer *Materializer
}

// NewPipeline 创建流水线
func NewPipeline(router *Router, generator *Generator, materializer *Materializer) *Pipeline {
	return &Pipeline{
		router:       router,
		generator:    generator,
		materializer: materializer,
	}
}

// Invoke 处理一轮。convo 为时间顺序上下文，最后一条是当前用户消息。
func (p *Pipeline) Invoke(ctx context.Context, convo []memory.Entry) (*TurnResult, error) {
	userText := lastUserText(convo)

	state := StateRouting
	result := &TurnResult{}

	for state != StateDone {
		switch state {
		case StateRouting:
			result.Modality = p.router.Route(userText)
			applog.Debug("[Pipeline] Routed", "modality", result.Modality)
			state = StateGenerating

		case StateGenerating:
			reply, cacheHit, err := p.generator.Generate(ctx, convo)
			if err != nil {
				return nil, fmt.Errorf("generate reply: %w", err)
			}
			result.ReplyText = reply
			result.CacheHit = cacheHit
			state = StateMaterializing

		case StateMaterializing:
			if err := p.materializer.Materialize(ctx, result); err != nil {
				return nil, fmt.Errorf("materialize %s: %w", result.Modality, err)
			}
			state = StateDone
		}
	}

	applog.Info("[Pipeline] ✅ Turn complete",
		"modality", result.Modality,
		"cache_hit", result.CacheHit,
		"reply_length", len(result.ReplyText),
	)
	return result, nil
}
