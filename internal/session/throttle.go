package session

import (
	"context"
	"fmt"
	"moff.io/frame-bridge/internal/cache"
	"moff.io/frame-bridge/pkg/errors"
	"moff.io/frame-bridge/pkg/log"
	"strconv"
	"time"
)

const DefaultCooldown = 30 * time.Second

// ErrThrottled matches every *ThrottledError.
var ErrThrottled = errors.New("email login throttled")

type ThrottledError struct {
	// Remaining whole seconds of the cooldown.
	Remaining int64
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("email login throttled, try again in %d seconds", e.Remaining)
}

func (e *ThrottledError) Unwrap() error {
	return ErrThrottled
}

// Throttle enforces the cooldown between email triggering operations.
// The last trigger is persisted in milliseconds.
type Throttle struct {
	cache    cache.Store
	cooldown time.Duration
	now      func() time.Time
}

type ThrottleOption func(t *Throttle)

func WithCooldown(d time.Duration) ThrottleOption {
	return func(t *Throttle) { t.cooldown = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

func NewThrottle(c cache.Store, opts ...ThrottleOption) *Throttle {
	t := &Throttle{cache: c, cooldown: DefaultCooldown, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Throttle) last(ctx context.Context) (int64, bool, error) {
	v, ok, err := t.cache.Get(ctx, KeyLastEmailLoginTime)
	if err != nil || !ok {
		return 0, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warnf("session - ignored malformed %v %q", KeyLastEmailLoginTime, v)
		return 0, false, nil
	}
	return ms, true, nil
}

// Remaining returns the seconds left in the cooldown, rounded up, or 0.
func (t *Throttle) Remaining(ctx context.Context) (int64, error) {
	last, ok, err := t.last(ctx)
	if err != nil || !ok {
		return 0, err
	}
	elapsed := t.now().UnixNano()/int64(time.Millisecond) - last
	left := t.cooldown.Milliseconds() - elapsed
	if left <= 0 {
		return 0, nil
	}
	return (left + 999) / 1000, nil
}

// AssertAllowed fails with *ThrottledError inside the cooldown.
func (t *Throttle) AssertAllowed(ctx context.Context) error {
	remaining, err := t.Remaining(ctx)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &ThrottledError{Remaining: remaining}
	}
	return nil
}

// Record starts a new cooldown now.
func (t *Throttle) Record(ctx context.Context) error {
	ms := t.now().UnixNano() / int64(time.Millisecond)
	if err := t.cache.Set(ctx, KeyLastEmailLoginTime, strconv.FormatInt(ms, 10)); err != nil {
		return errors.Wrap(err, "record email login time")
	}
	return nil
}

func (t *Throttle) Clear(ctx context.Context) error {
	if err := t.cache.Delete(ctx, KeyLastEmailLoginTime); err != nil {
		return errors.Wrap(err, "clear email login time")
	}
	return nil
}
