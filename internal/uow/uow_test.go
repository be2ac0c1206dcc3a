package uow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err error
}

func (f fakeRunner) RunTx(ctx context.Context, fn func(ctx context.Context, tx string) error) error {
	if err := fn(ctx, "tx"); err != nil {
		return err
	}
	return f.err
}

func TestDoRunsHooksAfterCommit(t *testing.T) {
	t.Parallel()

	u := New[string](fakeRunner{}, time.Second)

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, tx string, after func(AfterCommit)) error {
		assert.Equal(t, "tx", tx)
		after(func(context.Context) { order = append(order, "first") })
		after(func(context.Context) { order = append(order, "second") })
		order = append(order, "body")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"body", "first", "second"}, order)
}

func TestDoSkipsHooksOnCommitFailure(t *testing.T) {
	t.Parallel()

	commitErr := errors.New("commit failed")
	u := New[string](fakeRunner{err: commitErr}, 0)

	ran := false
	err := u.Do(context.Background(), func(ctx context.Context, tx string, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return nil
	})

	require.ErrorIs(t, err, commitErr)
	assert.False(t, ran)
}

func TestDoDetachesHooksFromCallerCancellation(t *testing.T) {
	t.Parallel()

	u := New[string](fakeRunner{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	var hookErr error
	err := u.Do(ctx, func(ctx context.Context, tx string, after func(AfterCommit)) error {
		after(func(ctx context.Context) { hookErr = ctx.Err() })
		cancel()
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, hookErr)
}
