// Package password hashes and verifies passwords with bcrypt on a bounded
// pool of workers.
package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jon4hz/bookshelf/internal/metrics"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrHashing is returned when bcrypt fails or a stored hash is malformed.
	ErrHashing = errors.New("password hashing failed")
	// ErrPasswordTooLong is returned for passwords bcrypt can't hash.
	ErrPasswordTooLong = errors.New("password is longer than 72 bytes")
)

// Hasher hashes and verifies passwords.
// The cost is fixed at construction and at most workers operations run at once.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// New returns a Hasher using the given bcrypt cost and worker count.
func New(cost, workers int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid bcrypt cost %d", cost)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("invalid worker count %d", workers)
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(workers)),
	}, nil
}

// Hash returns a salted bcrypt hash of the plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var hash []byte
	err := h.run(ctx, func() error {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		return err
	})
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return string(hash), nil
}

// Verify reports whether the plaintext matches the hash.
// A mismatch is not an error; a malformed hash is.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	err := h.run(ctx, func() error {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case ctx.Err() != nil:
		return false, err
	default:
		return false, fmt.Errorf("%w: %w", ErrHashing, err)
	}
}

// run waits for a free worker slot and runs fn in it.
func (h *Hasher) run(ctx context.Context, fn func() error) error {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	}()

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)
	return fn()
}
