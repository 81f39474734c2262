package orchestrator

import (
	"sync"
)

// TaskLockManager provides per-task mutual exclusion for mutating
// operations. Uses a keyed mutex pattern: each task id gets its own
// mutex, so mutations of different tasks proceed concurrently while two
// mutations of the same task are serialized. This closes the lost-update
// window where two actors both pass the transition rank check against a
// stale read.
type TaskLockManager struct {
	mu    sync.Mutex            // Guards the locks map itself
	locks map[int64]*sync.Mutex // Per-task mutexes
}

// NewTaskLockManager creates a new TaskLockManager.
func NewTaskLockManager() *TaskLockManager {
	return &TaskLockManager{
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock acquires the per-task mutex for the given task id.
// Creates the mutex on first access if it doesn't exist.
func (m *TaskLockManager) Lock(taskID int64) {
	m.mu.Lock()
	taskLock, exists := m.locks[taskID]
	if !exists {
		taskLock = &sync.Mutex{}
		m.locks[taskID] = taskLock
	}
	m.mu.Unlock()

	// Acquire the per-task lock (outside the manager lock to avoid contention)
	taskLock.Lock()
}

// Unlock releases the per-task mutex for the given task id.
func (m *TaskLockManager) Unlock(taskID int64) {
	m.mu.Lock()
	taskLock, exists := m.locks[taskID]
	m.mu.Unlock()

	if exists {
		taskLock.Unlock()
	}
}
