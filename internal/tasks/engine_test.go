package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/store"
)

func echoExecutor() Executor {
	return ExecutorFunc(func(ctx context.Context, taskType string, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"type":"` + taskType + `","project":"` + ProjectIDFromContext(ctx) + `"}`), nil
	})
}

func newTestEngine(t *testing.T, x Executor, ds *store.Store) *Engine {
	t.Helper()
	e := NewEngine(Config{Workers: 2, QueueSize: 10}, x, ds, zerolog.Nop())
	e.Start(t.Context())
	t.Cleanup(e.Stop)
	return e
}

func waitTerminal(t *testing.T, e *Engine, id string) *Task {
	t.Helper()
	var got *Task
	require.Eventually(t, func() bool {
		task, ok := e.Get(id)
		if !ok {
			return false
		}
		got = task
		return task.Status.Terminal()
	}, 3*time.Second, 10*time.Millisecond)
	return got
}

func TestEngine_SubmitAndComplete(t *testing.T) {
	e := newTestEngine(t, echoExecutor(), nil)

	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun, ProjectID: "p1", Params: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, StatusPending, task.Status)

	done := waitTerminal(t, e, task.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.JSONEq(t, `{"type":"generation.run","project":"p1"}`, string(done.Result))
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
}

func TestEngine_SubmitInvalidType(t *testing.T) {
	e := newTestEngine(t, echoExecutor(), nil)
	_, err := e.Submit(SubmitRequest{Type: "jira.get"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "unknown task type")
}

func TestEngine_ExecutorErrorAndPanic(t *testing.T) {
	e := newTestEngine(t, ExecutorFunc(func(_ context.Context, _ string, params json.RawMessage) (json.RawMessage, error) {
		if string(params) == `"panic"` {
			panic("boom")
		}
		return nil, errors.New("stage failed")
	}), nil)

	failed, err := e.Submit(SubmitRequest{Type: TypeSpecialistRun})
	require.NoError(t, err)
	got := waitTerminal(t, e, failed.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "stage failed", got.Error)

	panicked, err := e.Submit(SubmitRequest{Type: TypeSpecialistRun, Params: json.RawMessage(`"panic"`)})
	require.NoError(t, err)
	got = waitTerminal(t, e, panicked.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "panicked")
}

func TestEngine_RunTimeout(t *testing.T) {
	e := NewEngine(Config{Workers: 1, RunTimeout: 20 * time.Millisecond}, ExecutorFunc(
		func(ctx context.Context, _ string, _ json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil, zerolog.Nop())
	e.Start(t.Context())
	t.Cleanup(e.Stop)

	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.NoError(t, err)
	got := waitTerminal(t, e, task.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "deadline exceeded")
}

func TestEngine_CancelPending(t *testing.T) {
	// Not started: tasks stay pending.
	e := NewEngine(Config{Workers: 1, QueueSize: 5}, echoExecutor(), nil, zerolog.Nop())

	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.NoError(t, err)

	cancelled, err := e.Cancel(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = e.Cancel(task.ID)
	assert.True(t, errors.Is(err, perrors.ErrConflict))

	_, err = e.Cancel("missing")
	assert.True(t, errors.Is(err, perrors.ErrNotFound))
}

type hookedExecutor struct {
	Executor
	cancelled chan string
}

func (h hookedExecutor) TaskCancelled(taskType string, _ json.RawMessage) {
	h.cancelled <- taskType
}

func TestEngine_CancelCallsHook(t *testing.T) {
	x := hookedExecutor{Executor: echoExecutor(), cancelled: make(chan string, 1)}
	e := NewEngine(Config{Workers: 1, QueueSize: 5}, x, nil, zerolog.Nop())

	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun, Params: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = e.Cancel(task.ID)
	require.NoError(t, err)

	select {
	case typ := <-x.cancelled:
		assert.Equal(t, TypeGenerationRun, typ)
	default:
		t.Fatal("cancel hook not called")
	}

	// The worker skips the cancelled task once started.
	e.Start(t.Context())
	t.Cleanup(e.Stop)
	time.Sleep(20 * time.Millisecond)
	got, ok := e.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, got.Result)
}

func TestEngine_FailedTaskKeepsResult(t *testing.T) {
	e := newTestEngine(t, ExecutorFunc(func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"status":"failed","stages":{"database":{}}}`), errors.New("run failed")
	}), nil)

	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.NoError(t, err)
	got := waitTerminal(t, e, task.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "run failed", got.Error)
	assert.JSONEq(t, `{"status":"failed","stages":{"database":{}}}`, string(got.Result))
}

func TestEngine_QueueFull(t *testing.T) {
	e := NewEngine(Config{Workers: 1, QueueSize: 1}, echoExecutor(), nil, zerolog.Nop())

	_, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.NoError(t, err)
	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrUnavailable))
	assert.Equal(t, StatusFailed, task.Status)
}

func TestEngine_ListAndStats(t *testing.T) {
	e := NewEngine(Config{Workers: 1, QueueSize: 10}, echoExecutor(), nil, zerolog.Nop())
	for _, p := range []string{"a", "b", "a"} {
		_, err := e.Submit(SubmitRequest{Type: TypeGenerationRun, ProjectID: p})
		require.NoError(t, err)
	}
	_, err := e.Submit(SubmitRequest{Type: TypeSpecialistRun})
	require.NoError(t, err)

	all, total := e.List(ListQuery{})
	assert.Equal(t, 4, total)
	assert.Equal(t, TypeSpecialistRun, all[0].Type, "newest first")

	onlyA, total := e.List(ListQuery{ProjectID: "a"})
	assert.Equal(t, 2, total)
	assert.Len(t, onlyA, 2)

	page, total := e.List(ListQuery{Limit: 1, Offset: 3})
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ProjectID)

	stats := e.Stats()
	assert.Equal(t, 4, stats.TotalTasks)
	assert.Equal(t, 4, stats.ByStatus["pending"])
	assert.Equal(t, 3, stats.ByType[TypeGenerationRun])
}

func TestEngine_Prune(t *testing.T) {
	e := newTestEngine(t, echoExecutor(), nil)
	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun})
	require.NoError(t, err)
	waitTerminal(t, e, task.ID)

	assert.Zero(t, e.Prune(time.Hour))
	assert.Equal(t, 1, e.Prune(-time.Second))
	_, ok := e.Get(task.ID)
	assert.False(t, ok)
}

func TestEngine_PersistsToStore(t *testing.T) {
	ds, err := store.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	e := newTestEngine(t, echoExecutor(), ds)
	task, err := e.Submit(SubmitRequest{Type: TypeGenerationRun, ProjectID: "p1", Params: json.RawMessage(`{"project_id":"p1"}`)})
	require.NoError(t, err)
	waitTerminal(t, e, task.ID)

	row, err := ds.GetTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "completed", row.Status)
	assert.Equal(t, "p1", row.ProjectID)
	assert.Positive(t, row.CompletedAt)

	// A fresh engine still finds the task through the store.
	other := NewEngine(Config{}, echoExecutor(), ds, zerolog.Nop())
	got, ok := other.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.JSONEq(t, string(row.Result), string(got.Result))
}
