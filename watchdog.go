package main

import (
	"sync"
	"time"
)

// idleTimeout is how long a call may sit with neither caller speech nor
// remote audio before it is closed for cost control.
const idleTimeout = 90 * time.Second

// idleWatchdog is a single resettable deadline per call. Reset re-arms the
// deadline from the reset instant; expiry delivers exactly one signal on
// Expired. Expiry is not an error, it is a deliberate inactivity closure.
type idleWatchdog struct {
	timeout time.Duration
	expired chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newIdleWatchdog(timeout time.Duration) *idleWatchdog {
	return &idleWatchdog{
		timeout: timeout,
		expired: make(chan struct{}, 1),
	}
}

// Reset cancels any pending deadline and schedules a new one. The first
// Reset arms the watchdog.
func (w *idleWatchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

func (w *idleWatchdog) expire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	select {
	case w.expired <- struct{}{}:
	default:
	}
}

func (w *idleWatchdog) Expired() <-chan struct{} {
	return w.expired
}

// Stop disarms the watchdog. Idempotent; late timer fires are discarded.
func (w *idleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
