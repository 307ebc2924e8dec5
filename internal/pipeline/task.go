package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docrag/internal/source"
	"docrag/pkg/log"
	"docrag/pkg/tasks"
)

// SourceResolver 根据任务构造来源。
type SourceResolver func(task tasks.IngestTask) (source.Source, error)

// RunStatus 描述最近一次导入任务。
type RunStatus struct {
	TaskID     string     `json:"taskId,omitempty"`
	Location   string     `json:"location,omitempty"`
	Running    bool       `json:"running"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// TaskRunner 串行执行导入任务，供 Kafka 消费者与进程内调度使用。
type TaskRunner struct {
	processor *Processor
	resolve   SourceResolver

	runMu    sync.Mutex
	statusMu sync.RWMutex
	status   RunStatus
}

// NewTaskRunner 创建 TaskRunner。
func NewTaskRunner(processor *Processor, resolve SourceResolver) *TaskRunner {
	return &TaskRunner{processor: processor, resolve: resolve}
}

// Process 执行一个导入任务，返回致命错误。
func (t *TaskRunner) Process(ctx context.Context, task tasks.IngestTask) error {
	src, err := t.resolve(task)
	if err != nil {
		return fmt.Errorf("resolve source for task %s: %w", task.ID, err)
	}

	t.runMu.Lock()
	defer t.runMu.Unlock()

	started := time.Now()
	t.setStatus(RunStatus{TaskID: task.ID, Location: src.Location(), Running: true, StartedAt: &started})
	log.Infof("[TaskRunner] 开始执行导入任务: %s, 来源: %s", task.ID, src.Location())

	result, runErr := t.processor.Run(ctx, src)

	finished := time.Now()
	st := RunStatus{TaskID: task.ID, Location: src.Location(), StartedAt: &started, FinishedAt: &finished, Result: result}
	if runErr != nil {
		st.Error = runErr.Error()
	}
	t.setStatus(st)
	return runErr
}

// Status 返回最近一次任务的状态。
func (t *TaskRunner) Status() RunStatus {
	t.statusMu.RLock()
	defer t.statusMu.RUnlock()
	return t.status
}

func (t *TaskRunner) setStatus(s RunStatus) {
	t.statusMu.Lock()
	t.status = s
	t.statusMu.Unlock()
}
