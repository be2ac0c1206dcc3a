package uow

import (
	"context"
	"time"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// Runner opens a transaction and hands fn a handle bound to it.
type Runner[T any] interface {
	RunTx(ctx context.Context, fn func(ctx context.Context, tx T) error) error
}

// UoW represents a unit of work.
type UoW[T any] struct {
	runner  Runner[T]
	timeout time.Duration
}

// New returns a unit of work over runner. Hooks get a context detached from
// the caller's cancellation, bounded by hookTimeout when it is positive.
func New[T any](runner Runner[T], hookTimeout time.Duration) *UoW[T] {
	return &UoW[T]{runner: runner, timeout: hookTimeout}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks in registration order.
func (u *UoW[T]) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx T, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.runner.RunTx(ctx, func(ctx context.Context, tx T) error {
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	if len(hooks) == 0 {
		return nil
	}

	hctx := context.WithoutCancel(ctx)
	if u.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, u.timeout)
		defer cancel()
	}

	for _, h := range hooks {
		h(hctx)
	}

	return nil
}
