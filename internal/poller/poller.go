// Package poller waits for objects that appear asynchronously, such as a
// currency engine that is still loading. Concurrent waiters share one poll
// loop, and every wait is bounded.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultInterval = 300 * time.Millisecond
	DefaultTimeout  = 60 * time.Second
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("poller: timed out waiting for real object")
	// ErrClosed is returned by WaitFor once the handle has been released.
	ErrClosed = errors.New("poller: handle closed")
)

// TimeoutError reports which object never appeared.
type TimeoutError struct {
	Label string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: not available after %s", e.Label, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Getter reports the real object, or false while it is not available.
// It is called from several goroutines and must not have side effects.
type Getter[T any] func() (T, bool)

type options struct {
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Handle.
type Option func(*options)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout sets the ceiling of a single wait.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Handle owns the wait state for one real object.
type Handle[T any] struct {
	label    string
	get      Getter[T]
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	group  singleflight.Group
	wake   chan struct{}
	closed atomic.Bool
	loops  atomic.Int64
}

// New returns a handle around get. The label names the object in errors and logs.
func New[T any](label string, get Getter[T], opts ...Option) *Handle[T] {
	o := options{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Handle[T]{
		label:    label,
		get:      get,
		interval: o.interval,
		timeout:  o.timeout,
		logger:   o.logger.With("component", "poller", "object", label),
		wake:     make(chan struct{}, 1),
	}
}

// Label returns the diagnostic label.
func (h *Handle[T]) Label() string {
	return h.label
}

// TryGet checks for the real object without waiting.
func (h *Handle[T]) TryGet() (T, bool) {
	if h.get == nil {
		var zero T
		return zero, false
	}
	return h.get()
}

// WaitFor returns the real object once it is available. The first caller
// starts the poll loop; callers arriving while it runs join it. The loop fails
// every joined caller with a *TimeoutError once the timeout elapses.
// Cancelling ctx only detaches this caller.
func (h *Handle[T]) WaitFor(ctx context.Context) (T, error) {
	var zero T
	if v, ok := h.TryGet(); ok {
		return v, nil
	}
	if h.closed.Load() {
		return zero, fmt.Errorf("%s: %w", h.label, ErrClosed)
	}

	ch := h.group.DoChan(h.label, h.poll)
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Notify makes a running poll loop check the getter right away.
func (h *Handle[T]) Notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Close releases the handle. Waits already in flight run to completion or
// timeout; new waits fail with ErrClosed.
func (h *Handle[T]) Close() {
	h.closed.Store(true)
}

// Closed reports whether Close has been called.
func (h *Handle[T]) Closed() bool {
	return h.closed.Load()
}

func (h *Handle[T]) poll() (any, error) {
	h.loops.Add(1)
	h.logger.Debug("waiting for real object", "timeout", h.timeout)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(h.timeout)
	defer deadline.Stop()

	for {
		if v, ok := h.TryGet(); ok {
			return v, nil
		}
		select {
		case <-ticker.C:
		case <-h.wake:
		case <-deadline.C:
			if v, ok := h.TryGet(); ok {
				return v, nil
			}
			h.logger.Warn("real object did not appear", "timeout", h.timeout)
			return nil, &TimeoutError{Label: h.label, After: h.timeout}
		}
	}
}
