// Package bootstrap 根据配置装配存储、提取器、来源和导入管道，供 server 与 ragctl 共用。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/extractor"
	"docrag/internal/pipeline"
	"docrag/internal/repository"
	"docrag/internal/source"
	"docrag/internal/vectorstore"
	"docrag/pkg/database"
	"docrag/pkg/embedding"
	"docrag/pkg/es"
	"docrag/pkg/llm"
	"docrag/pkg/log"
	"docrag/pkg/storage"
	"docrag/pkg/tasks"
	"docrag/pkg/tika"
)

// App 持有一次进程生命周期内共享的组件。
type App struct {
	Config   config.Config
	Store    vectorstore.Store
	Registry *extractor.Registry
	Splitter *chunker.Splitter
	LLM      llm.Client

	// 以下组件按配置可选，未配置时为 nil
	Ledger repository.DocumentRepository
	Redis  *redis.Client
	MinIO  *minio.Client

	closers []func() error
}

// New 装配所有组件。失败时已打开的资源会被关闭。
func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{
		Config:   cfg,
		Registry: extractor.NewRegistry(tika.NewClient(cfg.Tika)),
		Splitter: chunker.New(
			chunker.WithChunkSize(cfg.Ingest.ChunkSize),
			chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
		),
		LLM: llm.NewClient(cfg.LLM),
	}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if cfg.Redis.Addr != "" {
		if app.Redis, err = database.NewRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, app.Redis.Close)
	}

	if cfg.MySQL.DSN != "" {
		db, dbErr := database.NewMySQL(cfg.MySQL.DSN)
		if dbErr != nil {
			return nil, dbErr
		}
		if sqlDB, e := db.DB(); e == nil {
			app.closers = append(app.closers, sqlDB.Close)
		}
		app.Ledger = repository.NewDocumentRepository(db)
	}

	if cfg.MinIO.Endpoint != "" {
		if app.MinIO, err = storage.NewMinIO(ctx, cfg.MinIO); err != nil {
			return nil, err
		}
	}

	if app.Store, err = openStore(ctx, cfg, embedding.NewClient(cfg.Embedding)); err != nil {
		return nil, err
	}
	if app.Redis != nil {
		app.Store = vectorstore.WithNameIndex(app.Store, vectorstore.NewRedisNameIndex(app.Redis, cfg.Redis.NameSetKey))
		log.Infof("已启用 Redis 文档名索引: %s", cfg.Redis.NameSetKey)
	}
	app.closers = append(app.closers, app.Store.Close)
	return app, nil
}

func openStore(ctx context.Context, cfg config.Config, embedder embedding.Client) (vectorstore.Store, error) {
	switch strings.ToLower(cfg.VectorStore.Driver) {
	case "", "bolt":
		return vectorstore.OpenBoltStore(cfg.VectorStore.PersistDirectory, embedder)
	case "elasticsearch", "es":
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
		}
		if err := es.EnsureIndex(ctx, client, cfg.Elasticsearch.IndexName, cfg.Elasticsearch.Dims); err != nil {
			return nil, fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
		}
		log.Infof("向量存储: elasticsearch, 索引: %s", cfg.Elasticsearch.IndexName)
		return vectorstore.NewElasticStore(client, cfg.Elasticsearch.IndexName, embedder), nil
	default:
		return nil, fmt.Errorf("unknown vectorstore driver %q", cfg.VectorStore.Driver)
	}
}

// Processor 按配置创建导入管道。
func (a *App) Processor(opts ...pipeline.Option) *pipeline.Processor {
	base := []pipeline.Option{
		pipeline.WithMaxBatchSize(a.Config.Ingest.MaxBatchSize),
		pipeline.WithConcurrency(a.Config.Ingest.Concurrency),
	}
	if a.Ledger != nil {
		base = append(base, pipeline.WithLedger(a.Ledger))
	}
	return pipeline.NewProcessor(a.Store, a.Registry, a.Splitter, append(base, opts...)...)
}

// Sources 返回已配置的来源类型。
func (a *App) Sources() []string {
	out := []string{tasks.SourceFS}
	if a.MinIO != nil {
		out = append(out, tasks.SourceMinIO)
	}
	return out
}

// ErrRootOutsideDocuments 表示任务指定的路径不在 ingest.document_directory 之内。
var ErrRootOutsideDocuments = errors.New("ingest root must be a relative path inside the document directory")

// ResolveSource 根据远程提交的任务构造来源。Root 为空时使用配置的目录或前缀，
// 本地目录只能是 document_directory 下的相对路径。
func (a *App) ResolveSource(task tasks.IngestTask) (source.Source, error) {
	return a.resolve(task, true)
}

// ResolveLocalSource 供命令行使用，Root 可以是任意本地目录。
func (a *App) ResolveLocalSource(task tasks.IngestTask) (source.Source, error) {
	return a.resolve(task, false)
}

// ValidateTask 在任务投递前检查来源和路径，规则与 ResolveSource 一致。
func (a *App) ValidateTask(task tasks.IngestTask) error {
	_, err := a.ResolveSource(task)
	return err
}

func (a *App) resolve(task tasks.IngestTask, confined bool) (source.Source, error) {
	matcher := source.NewMatcher(a.Config.Ingest.Includes, a.Config.Ingest.Excludes)
	kind := task.Source
	if kind == "" {
		kind = a.Config.Ingest.Source
	}
	switch kind {
	case "", tasks.SourceFS:
		root := task.Root
		if root == "" {
			root = a.Config.Ingest.DocumentDirectory
		} else if confined {
			var err error
			if root, err = confineRoot(a.Config.Ingest.DocumentDirectory, root); err != nil {
				return nil, err
			}
		}
		return source.NewFS(root, matcher), nil
	case tasks.SourceMinIO:
		if a.MinIO == nil {
			return nil, errors.New("minio is not configured")
		}
		prefix := task.Root
		if prefix == "" {
			prefix = a.Config.MinIO.Prefix
		}
		return source.NewMinIO(a.MinIO, a.Config.MinIO.BucketName, prefix, matcher), nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}

// confineRoot 把相对路径解析到 base 之下。绝对路径、跳出 base 的路径
// 以及指向 base 之外的符号链接都会被拒绝。
func confineRoot(base, root string) (string, error) {
	if filepath.IsAbs(root) || filepath.VolumeName(root) != "" {
		return "", fmt.Errorf("%w: %q", ErrRootOutsideDocuments, root)
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve document directory: %w", err)
	}
	joined := filepath.Join(absBase, root)
	if !within(absBase, joined) {
		return "", fmt.Errorf("%w: %q", ErrRootOutsideDocuments, root)
	}

	// 目录不存在时交给 FS 报告，否则按真实路径再检查一次符号链接
	realBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return joined, nil
	}
	if !within(realBase, resolveExisting(joined)) {
		return "", fmt.Errorf("%w: %q", ErrRootOutsideDocuments, root)
	}
	return joined, nil
}

// resolveExisting 解析 path 中已存在的最长前缀。
func resolveExisting(path string) string {
	for p := path; ; p = filepath.Dir(p) {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			return real
		}
		if filepath.Dir(p) == p {
			return p
		}
	}
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Uploader 返回写入 MinIO 导入桶的函数，未配置 MinIO 时返回 nil。
func (a *App) Uploader() func(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
	if a.MinIO == nil {
		return nil
	}
	return func(ctx context.Context, key string, r io.Reader, size int64) (int64, error) {
		return storage.PutObject(ctx, a.MinIO, a.Config.MinIO.BucketName, key, r, size, tika.DetectMimeType(key))
	}
}

// Close 按打开的逆序释放资源。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
