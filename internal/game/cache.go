package game

import (
	"context"
	"sync"
)

type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskResolved
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskResolved:
		return "resolved"
	case TaskFailed:
		return "failed"
	default:
		return "pending"
	}
}

// TaskHandle is an explicit future for one generation call. It settles at
// most once; a stale generation whose handle was evicted settles into an
// object nothing references anymore.
type TaskHandle struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	task    Task
	err     error
}

func NewTaskHandle() *TaskHandle {
	return &TaskHandle{done: make(chan struct{})}
}

func (h *TaskHandle) Resolve(t Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return
	}
	h.task = t
	h.settled = true
	close(h.done)
}

func (h *TaskHandle) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled {
		return
	}
	h.err = err
	h.settled = true
	close(h.done)
}

// Poll reports the current settlement without blocking.
func (h *TaskHandle) Poll() (Task, error, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task, h.err, h.settled
}

func (h *TaskHandle) Status() TaskStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case !h.settled:
		return TaskPending
	case h.err != nil:
		return TaskFailed
	default:
		return TaskResolved
	}
}

// Await blocks until the handle settles or the context ends.
func (h *TaskHandle) Await(ctx context.Context) (Task, error) {
	select {
	case <-h.done:
		task, err, _ := h.Poll()
		return task, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TaskCache maps (round, team) keys to task handles. Entries are only ever
// removed by an explicit Evict (retry) or Clear (restart), never overwritten.
type TaskCache struct {
	mu      sync.RWMutex
	entries map[TaskKey]*TaskHandle
}

func NewTaskCache() *TaskCache {
	return &TaskCache{entries: make(map[TaskKey]*TaskHandle)}
}

func (c *TaskCache) Has(key TaskKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key] != nil
}

func (c *TaskCache) Get(key TaskKey) (*TaskHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := c.entries[key]
	return h, h != nil
}

// Put stores the handle unless the key is already occupied. Returning false
// is how concurrent fill passes avoid racing duplicate generation calls.
func (c *TaskCache) Put(key TaskKey, h *TaskHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] != nil {
		return false
	}
	c.entries[key] = h
	return true
}

func (c *TaskCache) Evict(key TaskKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *TaskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[TaskKey]*TaskHandle)
}

func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
