// Package vectorstore 定义向量存储的统一接口及其实现。
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"docrag/internal/model"
	"docrag/pkg/embedding"
)

// ErrUnavailable 表示存储或其依赖的向量化服务无法连接。导入任务遇到它会整体中止。
var ErrUnavailable = errors.New("vector store unavailable")

// Filter 限定 List 返回的记录。
type Filter struct {
	Name  string // 为空表示不过滤
	Limit int    // <= 0 表示不限制
}

// Store 是导入管道与查询服务共享的存储契约。
type Store interface {
	// Exists 报告是否已有元数据 name 等于该文档名的记录。
	Exists(ctx context.Context, name string) (bool, error)
	// AddBatch 向量化并写入一批分块，要么全部写入，要么返回错误。
	AddBatch(ctx context.Context, chunks []model.Chunk) error
	// SimilaritySearch 按相似度降序返回最多 k 条记录。
	SimilaritySearch(ctx context.Context, query string, k int) ([]model.Record, error)
	List(ctx context.Context, filter Filter) ([]model.Record, error)
	Close() error
}

// unavailable 将连接类错误包装为 ErrUnavailable。
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// embedBatchSize 是单次向量化请求的文本上限，与存储的写入批大小无关。
const embedBatchSize = 64

// embedTexts 分批调用向量化服务，并把连接失败归类为 ErrUnavailable。
func embedTexts(ctx context.Context, embedder embedding.Client, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		part := texts[start:min(start+embedBatchSize, len(texts))]
		vectors, err := embedder.CreateEmbeddings(ctx, part)
		if err != nil {
			if errors.Is(err, embedding.ErrUnavailable) {
				return nil, unavailable("embed", err)
			}
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(part) {
			return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(part), len(vectors))
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
