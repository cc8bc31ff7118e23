// Package concurrency keeps overlapping pipeline runs from racing each other.
package concurrency

import "sync"

// PipelineKey guards the single issue pipeline: the processed log and the
// model budget are shared, so serve mode never runs two passes at once.
const PipelineKey = "pipeline"

// Manager hands out non-blocking named locks.
type Manager struct {
	locks sync.Map // map[string]chan struct{}
}

// NewManager creates a new lock manager.
func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) slot(key string) chan struct{} {
	actual, _ := m.locks.LoadOrStore(key, make(chan struct{}, 1))
	return actual.(chan struct{})
}

// TryAcquire takes the lock for key without waiting. It reports false when
// the lock is already held.
func (m *Manager) TryAcquire(key string) bool {
	select {
	case m.slot(key) <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the lock for key. Releasing a free lock is a no-op.
func (m *Manager) Release(key string) {
	if actual, ok := m.locks.Load(key); ok {
		select {
		case <-actual.(chan struct{}):
		default:
		}
	}
}

// Busy reports whether key is currently held.
func (m *Manager) Busy(key string) bool {
	actual, ok := m.locks.Load(key)
	if !ok {
		return false
	}
	return len(actual.(chan struct{})) > 0
}
