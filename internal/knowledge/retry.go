package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/example/errbook/internal/database"
	"github.com/example/errbook/internal/logger"
)

// retrier reruns a read-modify-write unit when it lost an optimistic
// concurrency race. Each attempt must start from a fresh read.
type retrier struct {
	maxTries uint
	log      *logger.Logger
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn()
		if err == nil {
			return struct{}{}, nil
		}
		if isConflict(err) {
			r.log.Debug("write conflict, retrying", "op", op, "attempt", attempt, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(r.maxTries),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	if err != nil && isConflict(err) {
		r.log.Warn("giving up after write conflicts", "op", op, "attempts", attempt)
		return fmt.Errorf("%w: %s gave up after %d attempts: %w", ErrConcurrencyConflict, op, attempt, err)
	}
	return err
}

// isConflict matches a stale version and a unique key taken by a concurrent
// creation. Both resolve on a fresh read.
func isConflict(err error) bool {
	return errors.Is(err, database.ErrVersionConflict) || errors.Is(err, database.ErrDuplicateKey)
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}
