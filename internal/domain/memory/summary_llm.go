package memory

import (
	"context"
	"fmt"
	"strings"

	applog "karanbot/internal/platform/log"

	"karanbot/internal/provider"
)

// summaryInstruction 固定摘要指令，作为最后一条 user 消息附加在窗口之后。
const summaryInstruction = "Summarize the conversation above in about 3 concise lines, " +
	"preserving important context, entities, and names."

// summaryTailEntries 只取窗口最近 N 条参与摘要，控制 token 消耗。
const summaryTailEntries = 20

// LLMSummaryGenerator 使用 LLM 生成对话摘要
type LLMSummaryGenerator struct {
	providerName string // LLM provider 名称
	modelName    string // 模型名称
}

// NewLLMSummaryGenerator 创建 LLM 摘要生成器
func NewLLMSummaryGenerator(providerName, modelName string) *LLMSummaryGenerator {
	applog.Info("[Summary/LLM] Generator initialized",
		"provider", providerName,
		"model", modelName,
	)
	return &LLMSummaryGenerator{
		providerName: providerName,
		modelName:    modelName,
	}
}

// Summarize 将窗口消息压缩为约 3 行的摘要
func (g *LLMSummaryGenerator) Summarize(ctx context.Context, entries []Entry) (string, error) {
	applog.Info("[Summary/LLM] 🤖 Starting summary generation",
		"provider", g.providerName,
		"model", g.modelName,
		"entry_count", len(entries),
	)

	llmProvider, err := provider.GetProvider(g.providerName)
	if err != nil {
		applog.Error("[Summary/LLM] ❌ Failed to get provider",
			"provider", g.providerName,
			"error", err,
		)
		return "", fmt.Errorf("get summary provider: %w", err)
	}

	tail := entries
	if len(tail) > summaryTailEntries {
		tail = tail[len(tail)-summaryTailEntries:]
	}

	messages := make([]provider.Message, 0, len(tail)+1)
	for _, e := range tail {
		messages = append(messages, provider.Message{Role: e.Role, Content: e.Content})
	}
	messages = append(messages, provider.Message{Role: RoleUser, Content: summaryInstruction})

	req := &provider.CompletionRequest{
		Model:       g.modelName,
		Messages:    messages,
		Temperature: 0.3, // 低温度保证稳定摘要
		MaxTokens:   500,
	}

	resp, err := llmProvider.Complete(ctx, req)
	if err != nil {
		applog.Error("[Summary/LLM] ❌ LLM call failed",
			"provider", g.providerName,
			"model", g.modelName,
			"error", err,
		)
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	result := strings.TrimSpace(resp.Content)

	resultPreview := result
	if len(resultPreview) > 300 {
		resultPreview = resultPreview[:300] + "..."
	}
	applog.Info("[Summary/LLM] ✅ Summary generated",
		"provider", g.providerName,
		"model", g.modelName,
		"summary_length", len(result),
		"summary_preview", resultPreview,
	)

	return result, nil
}
