package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"karanbot/internal/domain/memory"
	applog "karanbot/internal/platform/log"
)

// OpsHandler 会话记忆巡检与缓存管理接口
type OpsHandler struct {
	window  memory.WindowStore
	durable memory.DurableStore
	cache   memory.ReplyCache
}

// NewOpsHandler 创建运维处理器
func NewOpsHandler(window memory.WindowStore, durable memory.DurableStore, cache memory.ReplyCache) *OpsHandler {
	return &OpsHandler{
		window:  window,
		durable: durable,
		cache:   cache,
	}
}

// RegisterRoutes 注册受保护路由
func (h *OpsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/conversations/{chatID}/summary", h.GetSummary)
		r.Get("/conversations/{chatID}/window", h.GetWindow)
		r.Get("/cache/keys", h.ListCacheKeys)
		r.Delete("/cache/keys/{key}", h.DeleteCacheKey)
		r.Delete("/cache", h.PurgeCache)
	})
}

// GetSummary 查询会话的持久化摘要
func (h *OpsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}
	if h.durable == nil {
		writeError(w, http.StatusServiceUnavailable, "durable store not configured")
		return
	}

	summary, err := h.durable.GetSummary(r.Context(), chatID)
	if err != nil {
		applog.Error("[API] Failed to load summary", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id": chatID,
		"summary": summary,
	})
}

// GetWindow 查询会话的滚动窗口内容（时间顺序）
func (h *OpsHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	chatID, ok := parseChatID(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.window.Read(r.Context(), chatID, limit)
	if err != nil {
		applog.Error("[API] Failed to load window", "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load window")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id": chatID,
		"count":   len(entries),
		"entries": entries,
	})
}

// ListCacheKeys 列出问答缓存 key（SCAN 采样，巡检用）
func (h *OpsHandler) ListCacheKeys(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	keys, err := h.cache.Keys(r.Context(), limit)
	if err != nil {
		applog.Error("[API] Failed to list cache keys", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list cache keys")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(keys),
		"keys":  keys,
	})
}

// DeleteCacheKey 删除单条问答缓存
func (h *OpsHandler) DeleteCacheKey(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing cache key")
		return
	}

	deleted, err := h.cache.Delete(r.Context(), key)
	if err != nil {
		applog.Error("[API] Failed to delete cache key", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete cache key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":          key,
		"keys_deleted": deleted,
	})
}

// PurgeCache 清空问答缓存
func (h *OpsHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}

	deleted, err := h.cache.Purge(r.Context())
	if err != nil {
		applog.Error("[API] Failed to purge cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to purge cache")
		return
	}

	applog.Info("[API] 💾 QA cache purged", "keys_deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys_deleted": deleted,
	})
}

func parseChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "chatID")
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return chatID, true
}
