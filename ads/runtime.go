package ads

import (
	"sync"
	"time"
)

// sharedRuntime is the single-goroutine worker shared by every Client in
// the process for I/O callbacks and timeout bookkeeping, the same way the
// teacher's mqtt publisher drives all subscriber callbacks off one worker
// instead of a goroutine per connection.
type sharedRuntime struct {
	work chan func()
	done chan struct{}
}

var (
	runtimeMu sync.Mutex
	activeRuntime *sharedRuntime
)

// ensureSharedRuntime lazily starts the shared worker goroutine. Safe to
// call repeatedly; a runtime torn down by ReleaseSharedResources is
// recreated on next use.
func ensureSharedRuntime() *sharedRuntime {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if activeRuntime != nil {
		return activeRuntime
	}

	rt := &sharedRuntime{
		work: make(chan func(), 64),
		done: make(chan struct{}),
	}
	go rt.loop()
	activeRuntime = rt
	return rt
}

func (rt *sharedRuntime) loop() {
	defer close(rt.done)
	for fn := range rt.work {
		fn()
	}
}

// submitWork hands fn to the shared worker. If the runtime has been
// released, fn runs inline rather than being dropped.
func submitWork(fn func()) {
	runtimeMu.Lock()
	rt := activeRuntime
	runtimeMu.Unlock()

	if rt == nil {
		fn()
		return
	}
	select {
	case rt.work <- fn:
	default:
		fn()
	}
}

// timerHandle wraps a time.AfterFunc timer with an idempotent Cancel, the
// "wheel timer" the session layer uses for per-request timeouts.
type timerHandle struct {
	timer     *time.Timer
	once      sync.Once
	cancelled bool
	mu        sync.Mutex
}

// scheduleTimeout fires fn on the shared worker after d unless cancelled
// first.
func scheduleTimeout(d time.Duration, fn func()) *timerHandle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		cancelled := h.cancelled
		h.mu.Unlock()
		if !cancelled {
			submitWork(fn)
		}
	})
	return h
}

// Cancel stops the timer. Safe to call more than once and from any
// goroutine.
func (h *timerHandle) Cancel() {
	h.once.Do(func() {
		h.mu.Lock()
		h.cancelled = true
		h.mu.Unlock()
		h.timer.Stop()
	})
}

// ReleaseSharedResources shuts down the shared worker goroutine, waiting
// up to timeout for it to drain. Callers typically invoke this on process
// shutdown after closing all Clients; a later Client.Connect transparently
// restarts the runtime.
func ReleaseSharedResources(timeout time.Duration) error {
	runtimeMu.Lock()
	rt := activeRuntime
	activeRuntime = nil
	runtimeMu.Unlock()

	if rt == nil {
		return nil
	}
	close(rt.work)

	select {
	case <-rt.done:
		return nil
	case <-time.After(timeout):
		return NewLifecycleError("release-shared-resources", "worker did not drain before timeout", nil)
	}
}
