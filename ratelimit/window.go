package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Window is a named fixed-window limit: at most limit events per identifier
// per window.
type Window struct {
	name    string
	counter Counter
	limit   int
	window  time.Duration
}

// NewWindow validates the limit and returns a Window.
func NewWindow(name string, counter Counter, limit int, window time.Duration) (*Window, error) {
	if name == "" {
		return nil, errors.New("window name must not be empty")
	}
	if counter == nil {
		return nil, errors.New("window counter must not be nil")
	}
	if limit <= 0 {
		return nil, errors.New("window limit must be > 0")
	}
	if window <= 0 {
		return nil, errors.New("window duration must be > 0")
	}
	return &Window{name: name, counter: counter, limit: limit, window: window}, nil
}

// Name returns the policy name used in denied decisions.
func (w *Window) Name() string {
	return w.name
}

func (w *Window) key(identifier string) string {
	return w.name + ":" + identifier
}

// Check reports whether one more event for identifier would be allowed,
// without counting it.
func (w *Window) Check(ctx context.Context, identifier string) (Decision, error) {
	count, resetAt, err := w.counter.Peek(ctx, w.key(identifier))
	if err != nil {
		return Decision{}, err
	}
	if count >= w.limit {
		return deny(w.name, w.limit, count, resetAt), nil
	}
	return allow(w.limit, count), nil
}

// Allow counts one event for identifier and reports whether it fits the limit.
func (w *Window) Allow(ctx context.Context, identifier string) (Decision, error) {
	count, resetAt, err := w.counter.Increment(ctx, w.key(identifier), w.window)
	if err != nil {
		return Decision{}, err
	}
	if count > w.limit {
		return deny(w.name, w.limit, count, resetAt), nil
	}
	d := allow(w.limit, count)
	d.ResetAt = resetAt
	return d, nil
}

// Reset clears identifier's window.
func (w *Window) Reset(ctx context.Context, identifier string) error {
	return w.counter.Reset(ctx, w.key(identifier))
}
