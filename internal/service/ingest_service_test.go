package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/pipeline"
	"docrag/pkg/tasks"
)

type recordingProcessor struct {
	mu    sync.Mutex
	tasks []tasks.IngestTask
	done  chan struct{}
}

func (p *recordingProcessor) Process(_ context.Context, task tasks.IngestTask) error {
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	close(p.done)
	return nil
}

type fixedStatus pipeline.RunStatus

func (s fixedStatus) Status() pipeline.RunStatus { return pipeline.RunStatus(s) }

func TestSubmitDefaultsSource(t *testing.T) {
	var dispatched []tasks.IngestTask
	dispatch := func(_ context.Context, task tasks.IngestTask) error {
		dispatched = append(dispatched, task)
		return nil
	}
	svc := NewIngestService(dispatch, nil, nil, tasks.SourceFS, tasks.SourceFS)

	task, err := svc.Submit(context.Background(), IngestRequest{Root: "/data"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, tasks.SourceFS, task.Source)
	assert.Equal(t, "/data", task.Root)
	assert.Equal(t, "admin", task.RequestedBy)
	assert.NotEmpty(t, task.ID)
	require.Len(t, dispatched, 1)
	assert.Equal(t, task.ID, dispatched[0].ID)
}

func TestSubmitRejectsUnconfiguredSource(t *testing.T) {
	svc := NewIngestService(func(context.Context, tasks.IngestTask) error { return nil }, nil, nil, tasks.SourceFS, tasks.SourceFS)
	_, err := svc.Submit(context.Background(), IngestRequest{Source: tasks.SourceMinIO}, "")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestSubmitRejectsInvalidTaskBeforeDispatch(t *testing.T) {
	dispatched := false
	dispatch := func(context.Context, tasks.IngestTask) error {
		dispatched = true
		return nil
	}
	outside := errors.New("outside document directory")
	validate := func(task tasks.IngestTask) error {
		if task.Root == "/etc" {
			return outside
		}
		return nil
	}
	svc := NewIngestService(dispatch, nil, validate, tasks.SourceFS, tasks.SourceFS)

	_, err := svc.Submit(context.Background(), IngestRequest{Root: "/etc"}, "")
	assert.ErrorIs(t, err, ErrInvalidTask)
	assert.Contains(t, err.Error(), outside.Error())
	assert.False(t, dispatched)

	_, err = svc.Submit(context.Background(), IngestRequest{Root: "reports"}, "")
	require.NoError(t, err)
	assert.True(t, dispatched)
}

func TestSubmitWrapsDispatchError(t *testing.T) {
	boom := errors.New("broker down")
	svc := NewIngestService(func(context.Context, tasks.IngestTask) error { return boom }, nil, nil, tasks.SourceFS, tasks.SourceFS)
	_, err := svc.Submit(context.Background(), IngestRequest{}, "")
	assert.ErrorIs(t, err, boom)
}

func TestLocalDispatcherOutlivesRequest(t *testing.T) {
	proc := &recordingProcessor{done: make(chan struct{})}
	svc := NewIngestService(LocalDispatcher(context.Background(), proc), fixedStatus{TaskID: "prev"}, nil, tasks.SourceFS, tasks.SourceFS)

	reqCtx, cancel := context.WithCancel(context.Background())
	task, err := svc.Submit(reqCtx, IngestRequest{}, "")
	cancel()
	require.NoError(t, err)

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed")
	}
	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, task.ID, proc.tasks[0].ID)
	assert.Equal(t, "prev", svc.Status().TaskID)
}
