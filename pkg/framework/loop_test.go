package framework

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopPollsUntilCanceled(t *testing.T) {
	var polls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop().AddPoller(PollFunc(func(context.Context) {
		if polls.Add(1) == 10 {
			cancel()
		}
	}))
	err := l.Run(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.GreaterOrEqual(t, polls.Load(), int32(10))
}

func TestLoopStopsWhenRunnableFails(t *testing.T) {
	failure := errors.New("device gone")
	l := NewLoop()
	l.Interval = time.Millisecond
	l.AddPoller(PollFunc(func(context.Context) {}))
	l.AddRunnable(NamedRun("reader", RunFunc(func(context.Context) error {
		return failure
	})))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	err := l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure))
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	a, b := errors.New("a"), errors.New("b")
	errs.Add(a)
	assert.Equal(t, "a", errs.Aggregate().Error())
	errs.Add(&RunnableError{Name: "reader", Err: b})
	assert.Equal(t, "a; reader: b", errs.Aggregate().Error())
	assert.True(t, errors.Is(errs.Aggregate(), b))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	unblock := make(chan struct{})
	var closed atomic.Bool
	closer := closerFunc(func() error {
		if !closed.Swap(true) {
			close(unblock)
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errors.New("closed")
	})
	assert.Equal(t, context.Canceled, err)
	assert.True(t, closed.Load())
}
