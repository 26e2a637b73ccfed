package pipeline

import (
	iface "PostureServer/interface"
	"PostureServer/logger"
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Task is a long-lived pipeline stage.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedTask struct {
	name string
	task Task
}

// Supervisor starts every task in its own goroutine. Tasks share nothing but
// the frame slot and the posture state; a task that ends, for any reason,
// does not affect the others and is never restarted.
type Supervisor struct {
	tasks     []namedTask
	table     *TaskTable
	observers []iface.TaskObserver
	log       *zap.Logger
	wg        sync.WaitGroup
}

func NewSupervisor(table *TaskTable, log *zap.Logger, observers ...iface.TaskObserver) *Supervisor {
	if table == nil {
		table = NewTaskTable()
	}
	return &Supervisor{
		table:     table,
		observers: observers,
		log:       logger.OrNop(log),
	}
}

// Add registers a task. Tasks added after Start are not run.
func (s *Supervisor) Add(name string, task Task) {
	s.tasks = append(s.tasks, namedTask{name: name, task: task})
}

// Start launches every task and returns without waiting for any of them.
func (s *Supervisor) Start(ctx context.Context) {
	for _, t := range s.tasks {
		s.report(t.name, iface.TaskStarting, nil)
		s.wg.Add(1)
		go s.run(ctx, t)
	}
}

// Wait blocks until every started task has ended.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) Tasks() *TaskTable {
	return s.table
}

func (s *Supervisor) run(ctx context.Context, t namedTask) {
	defer s.wg.Done()
	s.report(t.name, iface.TaskRunning, nil)

	err := t.task.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Info("task stopped", zap.String("task", t.name))
		s.report(t.name, iface.TaskStopped, nil)
	default:
		s.log.Error("task ended", zap.String("task", t.name), zap.Error(err))
		s.report(t.name, iface.TaskFailed, err)
	}
}

func (s *Supervisor) report(name string, state iface.TaskState, err error) {
	s.table.record(name, state, err)
	for _, o := range s.observers {
		o.ObserveTask(name, state)
	}
}
