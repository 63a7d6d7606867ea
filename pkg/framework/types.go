package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Poller does a bounded amount of non-blocking work when polled.
type Poller interface {
	Poll(context.Context)
}

// PollFunc is the func form of Poller.
type PollFunc func(context.Context)

// Poll implements Poller.
func (f PollFunc) Poll(ctx context.Context) {
	f(ctx)
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}
