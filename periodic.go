package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// PeriodicTask runs a closure every period, with prompt cooperative
// cancellation. Multiple periodic tasks coexist on the same
// process; a single task's iterations are strictly serialized. Panics from
// the closure are caught, logged with a stack trace, and do not terminate
// the task.
type PeriodicTask struct {
	name   string
	period time.Duration
	fn     func()
	logger logger
	sticky bool

	mu       sync.Mutex
	wake     chan struct{}
	done     chan struct{}
	stopping atomic.Bool
	running  atomic.Bool

	status PeriodicTaskStatus
}

// PeriodicTaskStatus is a point-in-time snapshot of a PeriodicTask's
// liveness, returned by Inspect.
type PeriodicTaskStatus struct {
	Running      bool
	LastStarted  time.Time
	LastFinished time.Time
	LastDuration time.Duration
	LastPanicked bool
}

// PeriodicTaskOption configures a PeriodicTask at construction time.
type PeriodicTaskOption func(*PeriodicTask)

// Sticky locks the task's background goroutine, and so all its iterations,
// to a single OS thread via runtime.LockOSThread. That thread is whichever
// one the goroutine starts on, not the thread that called NewPeriodicTask.
// A deployment concern, not a correctness one; most embedders do not need it.
func Sticky() PeriodicTaskOption {
	return func(t *PeriodicTask) { t.sticky = true }
}

// WithPeriodicTaskLogger attaches a logger for panic-with-stack reporting.
func WithPeriodicTaskLogger(l logger) PeriodicTaskOption {
	return func(t *PeriodicTask) { t.logger = l }
}

// NewPeriodicTask constructs and starts a PeriodicTask that runs fn every
// period, with the first invocation after one period has elapsed.
func NewPeriodicTask(name string, period time.Duration, fn func(), opts ...PeriodicTaskOption) *PeriodicTask {
	t := &PeriodicTask{
		name:   name,
		period: period,
		fn:     fn,
		logger: defaultLogger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}
	t.running.Store(true)
	go t.loop()
	return t
}

func (t *PeriodicTask) loop() {
	defer close(t.done)
	if t.sticky {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	timer := time.NewTimer(t.period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.runOnce()
			if t.stopping.Load() {
				return
			}
			timer.Reset(t.period)
		case <-t.wake:
			// Wake signals either a stop request (checked below) or, in
			// principle, a future "run now" request; today only Stop wakes
			// the sleeper.
			if t.stopping.Load() {
				return
			}
			timer.Reset(t.period)
		}
	}
}

func (t *PeriodicTask) runOnce() {
	start := time.Now()
	panicked := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				t.logger.Errorf("metrics: periodic task %q panicked: %v\n%s", t.name, r, debug.Stack())
			}
		}()
		t.fn()
	}()

	end := time.Now()

	t.mu.Lock()
	t.status = PeriodicTaskStatus{
		Running:      true,
		LastStarted:  start,
		LastFinished: end,
		LastDuration: end.Sub(start),
		LastPanicked: panicked,
	}
	t.mu.Unlock()
}

// Stop sets a termination flag, wakes the sleeping task, and joins it. Stop
// returns only after the current iteration (if any) completes; a pending
// iteration may be skipped if Stop is requested during the inter-iteration
// wait.
func (t *PeriodicTask) Stop() {
	if !t.running.CAS(true, false) {
		return // already stopped
	}
	t.stopping.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
	<-t.done

	t.mu.Lock()
	t.status.Running = false
	t.mu.Unlock()
}

// Inspect returns a snapshot of the task's current status.
func (t *PeriodicTask) Inspect() PeriodicTaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status
	s.Running = t.running.Load()
	return s
}
