package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_TryAcquire(t *testing.T) {
	m := NewManager()

	if !m.TryAcquire(PipelineKey) {
		t.Fatal("first TryAcquire should succeed")
	}
	if m.TryAcquire(PipelineKey) {
		t.Error("second TryAcquire should fail while the lock is held")
	}
	if !m.Busy(PipelineKey) {
		t.Error("Busy should report a held lock")
	}

	m.Release(PipelineKey)
	if m.Busy(PipelineKey) {
		t.Error("Busy should be false after Release")
	}
	if !m.TryAcquire(PipelineKey) {
		t.Error("TryAcquire should succeed after Release")
	}
	m.Release(PipelineKey)
}

func TestManager_ReleaseIsIdempotent(t *testing.T) {
	m := NewManager()

	m.Release("never-acquired")
	m.TryAcquire(PipelineKey)
	m.Release(PipelineKey)
	m.Release(PipelineKey)

	if !m.TryAcquire(PipelineKey) {
		t.Error("TryAcquire should succeed after repeated releases")
	}
	m.Release(PipelineKey)
}

func TestManager_IndependentKeys(t *testing.T) {
	m := NewManager()

	if !m.TryAcquire("a") || !m.TryAcquire("b") {
		t.Fatal("different keys must not block each other")
	}
	if m.TryAcquire("a") || m.TryAcquire("b") {
		t.Error("both keys should still be held")
	}
	m.Release("a")
	m.Release("b")
}

func TestManager_ConcurrentAcquire(t *testing.T) {
	m := NewManager()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.TryAcquire(PipelineKey) {
				return
			}
			defer m.Release(PipelineKey)

			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("expected exactly one holder at a time, saw %d", maxRunning)
	}
}
