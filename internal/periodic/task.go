// Package periodic runs an action repeatedly with a fixed gap between runs.
package periodic

import (
	"log/slog"
	"sync"
	"time"
)

// Option configures a Task.
type Option func(*Task)

// OnError sets the handler that receives errors returned by the action.
// Without one, errors are logged.
func OnError(fn func(error)) Option {
	return func(t *Task) { t.onError = fn }
}

// WithLogger sets the task's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// Task repeats an action. The gap is measured from the end of one run to the
// start of the next, so a slow action never overlaps itself.
type Task struct {
	action  func() error
	onError func(error)
	logger  *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	running  bool
	gen      uint64
	timer    *time.Timer
}

// New returns a stopped task.
func New(action func() error, interval time.Duration, opts ...Option) *Task {
	t := &Task{
		action:   action,
		interval: interval,
		logger:   slog.Default().With("component", "periodic"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start runs the action now and then every interval. No-op while running.
func (t *Task) Start() {
	t.start(0)
}

// StartDelayed is like Start but waits one interval before the first run.
func (t *Task) StartDelayed() {
	t.mu.Lock()
	d := t.interval
	t.mu.Unlock()
	t.start(d)
}

func (t *Task) start(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(delay, func() { t.run(gen) })
}

// Stop cancels the next scheduled run. A run already in progress finishes
// but is not rescheduled.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Running reports whether the task is started.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// SetInterval changes the gap. It takes effect from the next scheduling.
func (t *Task) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.interval = d
	t.mu.Unlock()
}

// Interval returns the current gap.
func (t *Task) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Task) run(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	if err := t.action(); err != nil {
		if t.onError != nil {
			t.onError(err)
		} else {
			t.logger.Error("periodic task failed", "error", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running && gen == t.gen {
		t.timer = time.AfterFunc(t.interval, func() { t.run(gen) })
	}
}
