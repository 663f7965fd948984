package persona

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/philippgille/chromem-go"

	applog "karanbot/internal/platform/log"
)

// Knowledge 人设知识库。
// 启动时把资料目录下的文档切片嵌入进进程内向量库，
// 对话期间按用户文本做语义检索，补充到系统提示词里。
type Knowledge struct {
	collection *chromem.Collection
	embedder   Embedder
}

// KnowledgeConfig 知识库配置
type KnowledgeConfig struct {
	// CollectionName 集合名，默认 karan-persona
	CollectionName string
	// MaxChunkChars 单个片段最大字符数，默认 800
	MaxChunkChars int
}

// NewKnowledge 创建知识库
func NewKnowledge(embedder Embedder, cfg KnowledgeConfig) (*Knowledge, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "karan-persona"
	}

	embedFunc := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	})

	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(cfg.CollectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create persona collection: %w", err)
	}

	return &Knowledge{
		collection: collection,
		embedder:   embedder,
	}, nil
}

// LoadDir 递归加载资料目录下的所有支持格式文档
func (k *Knowledge) LoadDir(ctx context.Context, dir string, maxChunkChars int) error {
	applog.Info("[Persona] 📥 Loading knowledge documents", "dir", dir)

	var docs []chromem.Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		parser := parserFor(path)
		if parser == nil {
			applog.Debug("[Persona] Skipping unsupported file", "path", path)
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		text, err := parser.Parse(f, path)
		if err != nil {
			applog.Warn("[Persona] ⚠️ Failed to parse document", "path", path, "error", err)
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		for i, chunk := range chunkText(text, maxChunkChars) {
			docs = append(docs, chromem.Document{
				ID:      fmt.Sprintf("%s#%d", rel, i),
				Content: chunk,
				Metadata: map[string]string{
					"source": rel,
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk persona dir: %w", err)
	}

	if len(docs) == 0 {
		applog.Warn("[Persona] ⚠️ No knowledge documents found", "dir", dir)
		return nil
	}

	if err := k.collection.AddDocuments(ctx, docs, 4); err != nil {
		return fmt.Errorf("embed persona documents: %w", err)
	}

	applog.Info("[Persona] ✅ Knowledge loaded",
		"chunks", len(docs),
		"collection_size", k.collection.Count(),
	)
	return nil
}

// Retrieve 语义检索 topK 条相关片段
func (k *Knowledge) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	count := k.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := k.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("persona query: %w", err)
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Content)
	}

	applog.Debug("[Persona] Retrieved snippets", "query_length", len(query), "hits", len(snippets))
	return snippets, nil
}
