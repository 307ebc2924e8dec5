// Package pipeline 定义了文档导入的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"docrag/internal/chunker"
	"docrag/internal/extractor"
	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/source"
	"docrag/internal/vectorstore"
	"docrag/pkg/log"
)

// DefaultMaxBatchSize 是单次 AddBatch 的最大分块数。
const DefaultMaxBatchSize = 5461

// 单个文件的处理结果。
const (
	OutcomeIndexed     = "indexed"
	OutcomeSkipped     = "skipped"
	OutcomeEmpty       = "empty"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

// Result 汇总一次导入。
type Result struct {
	Seen        int           `json:"seen"`
	Indexed     int           `json:"indexed"`
	Skipped     int           `json:"skipped"`
	Empty       int           `json:"empty"`
	Unsupported int           `json:"unsupported"`
	Failed      int           `json:"failed"`
	Chunks      int           `json:"chunks"`
	Batches     int           `json:"batches"`
	Duration    time.Duration `json:"duration"`
}

// Progress 在每个文件处理结束时回调。
type Progress func(name, outcome string)

// Processor 封装了导入管道的所有依赖和逻辑。
type Processor struct {
	store       vectorstore.Store
	registry    *extractor.Registry
	splitter    *chunker.Splitter
	ledger      repository.DocumentRepository
	maxBatch    int
	concurrency int
	progress    Progress

	// 写入串行化；去重检查在锁内复核
	writeMu sync.Mutex
}

// Option 配置 Processor。
type Option func(*Processor)

func WithMaxBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxBatch = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLedger 记录每个文档的导入状态。
func WithLedger(ledger repository.DocumentRepository) Option {
	return func(p *Processor) { p.ledger = ledger }
}

func WithProgress(fn Progress) Option {
	return func(p *Processor) { p.progress = fn }
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(store vectorstore.Store, registry *extractor.Registry, splitter *chunker.Splitter, opts ...Option) *Processor {
	p := &Processor{
		store:       store,
		registry:    registry,
		splitter:    splitter,
		maxBatch:    DefaultMaxBatchSize,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type counter struct {
	mu sync.Mutex
	r  Result
}

func (c *counter) add(fn func(r *Result)) {
	c.mu.Lock()
	fn(&c.r)
	c.mu.Unlock()
}

// Run 遍历 src 并导入其中的文档。
// 单个文件的失败只记录日志；存储不可用（vectorstore.ErrUnavailable）时中止并返回该错误。
func (p *Processor) Run(ctx context.Context, src source.Source) (*Result, error) {
	start := time.Now()
	log.Infof("[Processor] 开始导入, 来源: %s, 并发: %d, 批大小: %d", src.Location(), p.concurrency, p.maxBatch)

	c := &counter{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	walkErr := src.Walk(gctx, func(item source.Item) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		c.add(func(r *Result) { r.Seen++ })
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcome, err := p.processItem(gctx, item, c)
			if p.progress != nil {
				p.progress(item.Name, outcome)
			}
			return err
		})
		return nil
	})
	waitErr := g.Wait()

	result := c.r
	result.Duration = time.Since(start)

	if waitErr != nil {
		log.Errorf("[Processor] 导入中止: %v", waitErr)
		return &result, waitErr
	}
	if walkErr != nil {
		log.Errorf("[Processor] 遍历来源失败: %v", walkErr)
		return &result, fmt.Errorf("walk %s: %w", src.Location(), walkErr)
	}
	log.Infof("[Processor] 导入完成, 文件: %d, 新增: %d, 已存在: %d, 空文本: %d, 不支持: %d, 失败: %d, 分块: %d, 耗时: %s",
		result.Seen, result.Indexed, result.Skipped, result.Empty, result.Unsupported, result.Failed, result.Chunks, result.Duration)
	return &result, nil
}

// processItem 处理单个文件。只有致命错误才会返回 error。
func (p *Processor) processItem(ctx context.Context, item source.Item, c *counter) (string, error) {
	name := item.Name

	if !p.registry.Supports(name) {
		log.Debugf("[Processor] 不支持的文件类型, 跳过: %s", item.Path)
		c.add(func(r *Result) { r.Unsupported++ })
		return OutcomeUnsupported, nil
	}

	// 1. 去重检查
	exists, err := p.store.Exists(ctx, name)
	if err != nil {
		return p.fail(ctx, c, item, "去重检查", err)
	}
	if exists {
		log.Infof("[Processor] 文档已存在, 跳过: %s", name)
		c.add(func(r *Result) { r.Skipped++ })
		return OutcomeSkipped, nil
	}

	// 2. 读取并提取文本
	content, err := item.Read(ctx)
	if err != nil {
		return p.fail(ctx, c, item, "读取文件", err)
	}
	text := p.registry.Extract(ctx, name, content)
	if strings.TrimSpace(text) == "" {
		log.Warnf("[Processor] 提取的文本为空, 跳过: %s", item.Path)
		c.add(func(r *Result) { r.Empty++ })
		return OutcomeEmpty, nil
	}
	log.Infof("[Processor] 文本提取成功: %s, 长度: %d 字符", name, utf8.RuneCountInString(text))

	// 3. 文本分块
	chunks := make([]model.Chunk, 0)
	for i, piece := range enumerate(p.splitter.Split(text)) {
		chunks = append(chunks, model.Chunk{Text: piece, Name: name, Index: i})
	}

	// 4. 分批写入
	return p.write(ctx, c, item, chunks)
}

func (p *Processor) write(ctx context.Context, c *counter, item source.Item, chunks []model.Chunk) (string, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return OutcomeFailed, nil
	}
	name := item.Name
	// 并发的去重检查可能同时通过，锁内复核一次
	exists, err := p.store.Exists(ctx, name)
	if err != nil {
		return p.fail(ctx, c, item, "去重复核", err)
	}
	if exists {
		log.Infof("[Processor] 文档已由其他任务写入, 跳过: %s (%s)", name, item.Path)
		c.add(func(r *Result) { r.Skipped++ })
		return OutcomeSkipped, nil
	}

	p.markIndexing(ctx, item)

	written := 0
	for batch := range chunker.Batches(slices.Values(chunks), p.maxBatch) {
		if err := p.store.AddBatch(ctx, batch); err != nil {
			return p.fail(ctx, c, item, fmt.Sprintf("写入分块 %d-%d", written, written+len(batch)-1), err)
		}
		written += len(batch)
		c.add(func(r *Result) { r.Batches++ })
		log.Debugf("[Processor] %s 已写入 %d/%d 个分块", name, written, len(chunks))
	}

	if p.ledger != nil {
		if err := p.ledger.MarkIndexed(ctx, name, written); err != nil {
			log.Warnf("[Processor] 更新台账失败: %s, %v", name, err)
		}
	}
	c.add(func(r *Result) {
		r.Indexed++
		r.Chunks += written
	})
	log.Infof("[Processor] 文档导入成功: %s, 分块数: %d", name, written)
	return OutcomeIndexed, nil
}

// fail 记录失败。存储不可用时返回错误以中止整个导入。
func (p *Processor) fail(ctx context.Context, c *counter, item source.Item, step string, err error) (string, error) {
	c.add(func(r *Result) { r.Failed++ })
	if p.ledger != nil {
		if lerr := p.ledger.MarkFailed(context.WithoutCancel(ctx), item.Name, err.Error()); lerr != nil {
			log.Warnf("[Processor] 更新台账失败: %s, %v", item.Name, lerr)
		}
	}
	if errors.Is(err, vectorstore.ErrUnavailable) {
		return OutcomeFailed, fmt.Errorf("%s %s: %w", step, item.Name, err)
	}
	log.Errorf("[Processor] %s失败, 文件: %s, 错误: %v", step, item.Path, err)
	return OutcomeFailed, nil
}

func (p *Processor) markIndexing(ctx context.Context, item source.Item) {
	if p.ledger == nil {
		return
	}
	doc := model.NewIndexedDocument(model.Document{
		Name:   item.Name,
		Path:   item.Path,
		Format: extractor.Format(item.Name),
	}, model.StatusIndexing)
	if err := p.ledger.MarkIndexing(ctx, doc); err != nil {
		log.Warnf("[Processor] 更新台账失败: %s, %v", item.Name, err)
	}
}
