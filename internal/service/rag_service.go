// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docrag/internal/model"
	"docrag/pkg/llm"
	"docrag/pkg/log"
)

// DefaultK 是未配置时检索的记录数。
const DefaultK = 3

// ErrEmptyQuery 表示查询为空或只有空白。
var ErrEmptyQuery = errors.New("query not provided")

// Retriever 是查询服务对向量存储的最小依赖。
type Retriever interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]model.Record, error)
}

// RAGService 定义了检索增强问答的接口。
type RAGService interface {
	// Answer 检索上下文并返回完整答案。
	Answer(ctx context.Context, query string) (string, error)
	// Stream 与 Answer 使用同一 prompt，按到达顺序回调每个片段。
	Stream(ctx context.Context, query string, fn func(fragment string) error) error
	// Retrieve 返回按相似度排序的原始记录，k <= 0 时使用默认值。
	Retrieve(ctx context.Context, query string, k int) ([]model.Record, error)
}

type ragService struct {
	store     Retriever
	llmClient llm.Client
	model     string
	k         int
}

// NewRAGService 创建一个新的 RAGService 实例。
func NewRAGService(store Retriever, llmClient llm.Client, model string, k int) RAGService {
	if k <= 0 {
		k = DefaultK
	}
	return &ragService{store: store, llmClient: llmClient, model: model, k: k}
}

func (s *ragService) Answer(ctx context.Context, query string) (string, error) {
	prompt, err := s.prompt(ctx, query)
	if err != nil {
		return "", err
	}
	answer, err := s.llmClient.Generate(ctx, s.model, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	log.Infof("[RAGService] 生成完成, 查询长度: %d, 答案长度: %d", len(query), len(answer))
	return answer, nil
}

func (s *ragService) Stream(ctx context.Context, query string, fn func(fragment string) error) error {
	prompt, err := s.prompt(ctx, query)
	if err != nil {
		return err
	}
	if err := s.llmClient.Stream(ctx, s.model, prompt, fn); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

func (s *ragService) Retrieve(ctx context.Context, query string, k int) ([]model.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.k
	}
	records, err := s.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return records, nil
}

// prompt 检索前 k 条记录并拼接提示词。
func (s *ragService) prompt(ctx context.Context, query string) (string, error) {
	records, err := s.Retrieve(ctx, query, s.k)
	if err != nil {
		return "", err
	}
	log.Debugf("[RAGService] 检索到 %d 条上下文", len(records))
	return BuildPrompt(query, records), nil
}

// BuildPrompt 按排名顺序拼接：query + " " + 以空格连接的记录文本。
func BuildPrompt(query string, records []model.Record) string {
	texts := make([]string, 0, len(records))
	for _, r := range records {
		texts = append(texts, r.Text)
	}
	return query + " " + strings.Join(texts, " ")
}
