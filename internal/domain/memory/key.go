package memory

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// CacheKey 生成问答缓存 key。
// 形如 {namespace}:{sha256(user||model[||system])}，
// 其中用户文本先 trim 再转小写，保证大小写/首尾空白不影响命中。
// 该 key 布局是对外契约（外部巡检/共享缓存依赖它），不可改动。
func CacheKey(namespace, model, systemPrompt, userText string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(userText)),
		strings.TrimSpace(model),
	}
	if systemPrompt != "" {
		parts = append(parts, strings.TrimSpace(systemPrompt))
	}
	raw := strings.Join(parts, "||")
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s:%x", strings.TrimRight(namespace, ":"), sum)
}
