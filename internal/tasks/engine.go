package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/appforge/internal/errors"
	"github.com/p-blackswan/appforge/internal/store"
)

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	projectIDKey contextKey = "project_id"
)

// TaskIDFromContext returns the id of the task being executed.
func TaskIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(taskIDKey).(string)
	return v
}

// ProjectIDFromContext returns the project the executing task belongs to.
func ProjectIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(projectIDKey).(string)
	return v
}

// Executor runs one task.
type Executor interface {
	Execute(ctx context.Context, taskType string, params json.RawMessage) (json.RawMessage, error)
}

// CancelHook is implemented by executors that hold state for queued tasks.
// It is called once after a pending task is cancelled.
type CancelHook interface {
	TaskCancelled(taskType string, params json.RawMessage)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, taskType string, params json.RawMessage) (json.RawMessage, error)

func (f ExecutorFunc) Execute(ctx context.Context, taskType string, params json.RawMessage) (json.RawMessage, error) {
	return f(ctx, taskType, params)
}

// Config holds engine settings.
type Config struct {
	Workers   int
	QueueSize int
	// RunTimeout bounds each execution. Zero means no limit.
	RunTimeout time.Duration
}

// Engine manages the lifecycle of async tasks.
type Engine struct {
	tasks     sync.Map // id → *Task
	taskList  []*Task
	listMu    sync.RWMutex
	queue     chan *Task
	workers   int
	timeout   time.Duration
	executor  Executor
	dataStore *store.Store
	logger    zerolog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   atomic.Bool
}

// NewEngine creates an engine. ds may be nil.
func NewEngine(cfg Config, executor Executor, ds *store.Store, logger zerolog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	return &Engine{
		queue:     make(chan *Task, cfg.QueueSize),
		workers:   cfg.Workers,
		timeout:   cfg.RunTimeout,
		executor:  executor,
		dataStore: ds,
		logger:    logger.With().Str("component", "task_engine").Logger(),
	}
}

// SetExecutor replaces the executor. Call before Start.
func (e *Engine) SetExecutor(x Executor) { e.executor = x }

// Start launches the workers.
func (e *Engine) Start(ctx context.Context) {
	if e.running.Swap(true) {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.logger.Info().Int("workers", e.workers).Msg("task engine started")
}

// Stop cancels in-flight work and waits for the workers to exit.
func (e *Engine) Stop() {
	if !e.running.Swap(false) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info().Msg("task engine stopped")
}

// Submit creates a task and enqueues it.
func (e *Engine) Submit(req SubmitRequest) (*Task, error) {
	if !IsValidType(req.Type) {
		return nil, perrors.Invalid("unknown task type: %s", req.Type)
	}

	task := &Task{
		ID:        uuid.New().String(),
		Type:      req.Type,
		Status:    StatusPending,
		Params:    req.Params,
		ProjectID: req.ProjectID,
		CallerID:  req.CallerID,
		CreatedAt: time.Now().UTC(),
	}

	e.tasks.Store(task.ID, task)
	e.listMu.Lock()
	e.taskList = append(e.taskList, task)
	e.listMu.Unlock()

	if e.dataStore != nil {
		row := &store.Task{
			ID:        task.ID,
			Type:      task.Type,
			Status:    string(task.Status),
			Params:    string(task.Params),
			ProjectID: task.ProjectID,
			CallerID:  task.CallerID,
			CreatedAt: task.CreatedAt.UnixMilli(),
			UpdatedAt: task.CreatedAt.UnixMilli(),
		}
		if err := e.dataStore.SaveTask(row); err != nil {
			e.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to persist task")
		}
	}

	// Snapshot before enqueueing; a worker may pick the task up immediately.
	snap := task.Snapshot()

	select {
	case e.queue <- task:
		e.logger.Info().
			Str("task_id", task.ID).
			Str("type", task.Type).
			Str("project_id", task.ProjectID).
			Msg("task enqueued")
	default:
		e.finish(task, StatusFailed, nil, "task queue is full")
		return task.Snapshot(), fmt.Errorf("task queue is full: %w", perrors.ErrUnavailable)
	}
	return snap, nil
}

// Get returns a snapshot of a task. Tasks from a previous process are read
// back from the store.
func (e *Engine) Get(id string) (*Task, bool) {
	if val, ok := e.tasks.Load(id); ok {
		return val.(*Task).Snapshot(), true
	}
	if e.dataStore == nil {
		return nil, false
	}
	row, err := e.dataStore.GetTask(id)
	if err != nil {
		e.logger.Warn().Err(err).Str("task_id", id).Msg("task lookup failed")
		return nil, false
	}
	if row == nil {
		return nil, false
	}
	return fromRow(row), true
}

func fromRow(r *store.Task) *Task {
	t := &Task{
		ID:        r.ID,
		Type:      r.Type,
		Status:    Status(r.Status),
		ProjectID: r.ProjectID,
		CallerID:  r.CallerID,
		Error:     r.Error,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.Params != "" {
		t.Params = json.RawMessage(r.Params)
	}
	if r.Result != "" {
		t.Result = json.RawMessage(r.Result)
	}
	if r.CompletedAt > 0 {
		c := time.UnixMilli(r.CompletedAt).UTC()
		t.CompletedAt = &c
	}
	return t
}

// Cancel cancels a pending task.
func (e *Engine) Cancel(id string) (*Task, error) {
	val, ok := e.tasks.Load(id)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, perrors.ErrNotFound)
	}

	task := val.(*Task)
	task.mu.Lock()
	if task.Status != StatusPending {
		status := task.Status
		task.mu.Unlock()
		return task.Snapshot(), fmt.Errorf("task %s is %s, only pending tasks can be cancelled: %w", id, status, perrors.ErrConflict)
	}
	task.Status = StatusCancelled
	now := time.Now().UTC()
	task.CompletedAt = &now
	task.mu.Unlock()

	if e.dataStore != nil {
		_ = e.dataStore.CompleteTask(id, string(StatusCancelled), "", "")
	}
	if hook, ok := e.executor.(CancelHook); ok {
		hook.TaskCancelled(task.Type, task.Params)
	}
	e.logger.Info().Str("task_id", id).Msg("task cancelled")
	return task.Snapshot(), nil
}

// List returns matching tasks, newest first.
func (e *Engine) List(q ListQuery) ([]*Task, int) {
	e.listMu.RLock()
	defer e.listMu.RUnlock()

	var filtered []*Task
	for _, t := range e.taskList {
		t.mu.RLock()
		status, typ, projectID := t.Status, t.Type, t.ProjectID
		t.mu.RUnlock()

		if q.Status != "" && string(status) != q.Status {
			continue
		}
		if q.Type != "" && typ != q.Type {
			continue
		}
		if q.ProjectID != "" && projectID != q.ProjectID {
			continue
		}
		filtered = append(filtered, t)
	}
	total := len(filtered)

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := max(q.Offset, 0)
	if offset >= total {
		return nil, total
	}
	end := min(offset+limit, total)

	result := make([]*Task, 0, end-offset)
	for i := offset; i < end; i++ {
		result = append(result, filtered[total-1-i].Snapshot())
	}
	return result, total
}

// Stats returns summary statistics.
func (e *Engine) Stats() Stats {
	e.listMu.RLock()
	defer e.listMu.RUnlock()

	s := Stats{
		TotalTasks: len(e.taskList),
		ByStatus:   make(map[string]int),
		ByType:     make(map[string]int),
	}
	var total, completed int64
	for _, t := range e.taskList {
		t.mu.RLock()
		s.ByStatus[string(t.Status)]++
		s.ByType[t.Type]++
		if t.Status == StatusCompleted && t.StartedAt != nil && t.CompletedAt != nil {
			total += t.CompletedAt.Sub(*t.StartedAt).Milliseconds()
			completed++
		}
		t.mu.RUnlock()
	}
	if completed > 0 {
		s.AvgDurationMs = total / completed
	}
	return s
}

// Prune forgets terminal tasks that finished before now-maxAge. Persisted
// rows are left to store retention.
func (e *Engine) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	e.listMu.Lock()
	defer e.listMu.Unlock()

	kept := e.taskList[:0]
	removed := 0
	for _, t := range e.taskList {
		t.mu.RLock()
		old := t.Status.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff)
		t.mu.RUnlock()
		if old {
			e.tasks.Delete(t.ID)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	clear(e.taskList[len(kept):])
	e.taskList = kept
	return removed
}

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	log := e.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-e.queue:
			e.execute(ctx, task, log)
		}
	}
}

func (e *Engine) execute(ctx context.Context, task *Task, log zerolog.Logger) {
	task.mu.Lock()
	if task.Status != StatusPending {
		task.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	task.Status = StatusRunning
	task.StartedAt = &now
	task.mu.Unlock()

	if e.dataStore != nil {
		_ = e.dataStore.UpdateTaskStatus(task.ID, string(StatusRunning))
	}
	log.Info().Str("task_id", task.ID).Str("type", task.Type).Msg("executing task")

	taskCtx := context.WithValue(ctx, taskIDKey, task.ID)
	if task.ProjectID != "" {
		taskCtx = context.WithValue(taskCtx, projectIDKey, task.ProjectID)
	}
	var cancel context.CancelFunc
	if e.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(taskCtx, e.timeout)
	} else {
		taskCtx, cancel = context.WithCancel(taskCtx)
	}
	defer cancel()

	// A failed task keeps whatever result the executor returned with its error.
	result, err := e.run(taskCtx, task)
	if err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("task failed")
		e.finish(task, StatusFailed, result, err.Error())
		return
	}
	log.Info().Str("task_id", task.ID).Msg("task completed")
	e.finish(task, StatusCompleted, result, "")
}

func (e *Engine) run(ctx context.Context, task *Task) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if e.executor == nil {
		return nil, fmt.Errorf("no executor configured: %w", perrors.ErrUnavailable)
	}
	return e.executor.Execute(ctx, task.Type, task.Params)
}

func (e *Engine) finish(task *Task, status Status, result json.RawMessage, errMsg string) {
	now := time.Now().UTC()
	task.mu.Lock()
	task.Status = status
	task.Result = result
	task.Error = errMsg
	task.CompletedAt = &now
	task.mu.Unlock()

	if e.dataStore != nil {
		if err := e.dataStore.CompleteTask(task.ID, string(status), string(result), errMsg); err != nil {
			e.logger.Warn().Err(err).Str("task_id", task.ID).Msg("failed to persist task result")
		}
	}
}
