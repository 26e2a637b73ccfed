package pipeline

import (
	iface "PostureServer/interface"
	"maps"
	"sync"
	"time"
)

const (
	TaskCapture  = "capture"
	TaskClassify = "classify"
	TaskPublish  = "publish"
)

// TaskNames lists the supervised tasks in start order.
func TaskNames() []string {
	return []string{TaskCapture, TaskClassify, TaskPublish}
}

type TaskInfo struct {
	State iface.TaskState
	Since time.Time
	Err   string
}

// TaskTable records the last state of every task. It is an iface.TaskObserver.
type TaskTable struct {
	mu    sync.RWMutex
	tasks map[string]TaskInfo
}

func NewTaskTable() *TaskTable {
	return &TaskTable{tasks: make(map[string]TaskInfo)}
}

func (t *TaskTable) ObserveTask(task string, state iface.TaskState) {
	t.record(task, state, nil)
}

func (t *TaskTable) record(task string, state iface.TaskState, err error) {
	info := TaskInfo{State: state, Since: time.Now()}
	if err != nil {
		info.Err = err.Error()
	}
	t.mu.Lock()
	t.tasks[task] = info
	t.mu.Unlock()
}

func (t *TaskTable) Get(task string) (TaskInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.tasks[task]
	return info, ok
}

func (t *TaskTable) Snapshot() map[string]TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.tasks)
}
