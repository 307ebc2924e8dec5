package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docrag/internal/pipeline"
	"docrag/pkg/log"
	"docrag/pkg/tasks"
)

// ErrUnknownSource 表示请求的来源类型不受支持或未配置。
var ErrUnknownSource = errors.New("unknown ingest source")

// ErrInvalidTask 表示任务在投递前未通过校验，例如路径超出文档目录。
var ErrInvalidTask = errors.New("invalid ingest task")

// ValidateFunc 在投递前检查任务。
type ValidateFunc func(task tasks.IngestTask) error

// DispatchFunc 把导入任务交给执行方（Kafka 或进程内）。
type DispatchFunc func(ctx context.Context, task tasks.IngestTask) error

// TaskProcessor 同步执行一个导入任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// StatusReporter 报告最近一次导入任务。
type StatusReporter interface {
	Status() pipeline.RunStatus
}

// IngestRequest 是 POST /api/v1/ingest 的请求体。
type IngestRequest struct {
	Source string `json:"source"`
	Root   string `json:"root"`
}

// IngestService 负责提交导入任务。
type IngestService interface {
	Submit(ctx context.Context, req IngestRequest, requestedBy string) (tasks.IngestTask, error)
	Status() pipeline.RunStatus
}

type ingestService struct {
	dispatch      DispatchFunc
	status        StatusReporter
	validate      ValidateFunc
	defaultSource string
	sources       map[string]bool
}

// NewIngestService 创建 IngestService。sources 列出已配置的来源类型，defaultSource 用于未指定来源的请求。
// validate 可以为 nil。
func NewIngestService(dispatch DispatchFunc, status StatusReporter, validate ValidateFunc, defaultSource string, sources ...string) IngestService {
	s := &ingestService{
		dispatch:      dispatch,
		status:        status,
		validate:      validate,
		defaultSource: defaultSource,
		sources:       make(map[string]bool, len(sources)),
	}
	for _, src := range sources {
		s.sources[src] = true
	}
	return s
}

func (s *ingestService) Submit(ctx context.Context, req IngestRequest, requestedBy string) (tasks.IngestTask, error) {
	source := req.Source
	if source == "" {
		source = s.defaultSource
	}
	if !s.sources[source] {
		return tasks.IngestTask{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	task := tasks.IngestTask{
		ID:          uuid.NewString(),
		Source:      source,
		Root:        req.Root,
		RequestedBy: requestedBy,
		RequestedAt: time.Now(),
	}
	if s.validate != nil {
		if err := s.validate(task); err != nil {
			return tasks.IngestTask{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	}
	if err := s.dispatch(ctx, task); err != nil {
		return tasks.IngestTask{}, fmt.Errorf("dispatch ingest task: %w", err)
	}
	log.Infof("[IngestService] 导入任务已提交: %s, 来源: %s, 路径: %s", task.ID, task.Source, task.Root)
	return task, nil
}

func (s *ingestService) Status() pipeline.RunStatus {
	if s.status == nil {
		return pipeline.RunStatus{}
	}
	return s.status.Status()
}

// LocalDispatcher 在后台 goroutine 中执行任务，未配置 Kafka 时使用。
// 任务不随请求取消，只随 base 取消。
func LocalDispatcher(base context.Context, processor TaskProcessor) DispatchFunc {
	return func(_ context.Context, task tasks.IngestTask) error {
		go func() {
			if err := processor.Process(base, task); err != nil {
				log.Errorf("[IngestService] 导入任务失败: %s, %v", task.ID, err)
			}
		}()
		return nil
	}
}
