package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
)

// ErrTooManyAttempts is returned when a key exceeded its failed login budget.
var ErrTooManyAttempts = errors.New("too many failed login attempts")

const loginAttemptsPrefix = "login-attempts:"

// LoginLimiter counts failed logins per key within a sliding window.
// Counting is best effort: a cache failure never blocks a login.
type LoginLimiter struct {
	attempts    *PrefixedCache[int]
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter creates a limiter on top of the given cache.
func NewLoginLimiter(c *cache.Cache[any], maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		attempts:    NewPrefixedCache[int](c, loginAttemptsPrefix),
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *LoginLimiter) count(ctx context.Context, key string) int {
	n, err := l.attempts.Get(ctx, key)
	if err != nil {
		// a miss is reported as an error by every store
		return 0
	}
	return n
}

// Allow returns ErrTooManyAttempts once the key used up its attempts.
func (l *LoginLimiter) Allow(ctx context.Context, key string) error {
	if l.count(ctx, key) >= l.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// Fail records a failed attempt and restarts the window.
func (l *LoginLimiter) Fail(ctx context.Context, key string) {
	n := l.count(ctx, key) + 1
	if err := l.attempts.Set(ctx, key, n, store.WithExpiration(l.window)); err != nil {
		log.Warn("failed to record login attempt", "error", err)
	}
}

// Reset forgets all failed attempts of the key.
func (l *LoginLimiter) Reset(ctx context.Context, key string) {
	if err := l.attempts.Delete(ctx, key); err != nil {
		log.Debug("failed to reset login attempts", "error", err)
	}
}
