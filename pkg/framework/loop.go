package framework

import (
	"context"
	"runtime"
	"time"
)

// Loop polls components from a single goroutine and supervises the
// Runnables feeding them. All Pollers run on the same goroutine, so state
// owned by them needs no locking.
type Loop struct {
	// Interval is the pause between iterations. With 0 the loop only
	// yields the processor.
	Interval time.Duration

	pollers []Poller
	runners []Runnable
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{}
}

// Add adds components using LoopAdder.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddPoller adds Pollers, polled in the order added.
func (l *Loop) AddPoller(pollers ...Poller) *Loop {
	l.pollers = append(l.pollers, pollers...)
	return l
}

// AddRunnable adds background Runnables. The loop stops when any of them
// returns.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run runs the loop until ctx is canceled or a Runnable stops.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx)
	for _, r := range l.runners {
		runner.Go(&cancelOnExit{Runnable: r, cancel: cancel})
	}

	for {
		select {
		case <-ctx.Done():
			if err := runner.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		default:
		}
		for _, p := range l.pollers {
			p.Poll(ctx)
		}
		if l.Interval > 0 {
			time.Sleep(l.Interval)
		} else {
			runtime.Gosched()
		}
	}
}

type cancelOnExit struct {
	Runnable
	cancel context.CancelFunc
}

func (r *cancelOnExit) Name() string {
	if named, ok := r.Runnable.(Named); ok {
		return named.Name()
	}
	return ""
}

func (r *cancelOnExit) Run(ctx context.Context) error {
	defer r.cancel()
	return r.Runnable.Run(ctx)
}
