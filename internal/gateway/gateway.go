package gateway

import (
	"context"
	"sync"

	"github.com/user/stashbot/internal/types"
)

// Gateway turns inbound transport events into runs. Each event is wrapped in
// a Run and enqueued on its owner's lane, so handling for one owner is
// strictly serialized while distinct owners proceed in parallel.
type Gateway struct {
	Queue *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway with the given concurrency limit for simultaneous
// run processing across owners.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 4
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{
		Queue: NewQueue(concurrency),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnReply sets a callback invoked for each outbound response the run
// produces.
func WithOnReply(fn func(*types.Outbound)) RunOption {
	return func(r *Run) { r.OnReply = fn }
}

// HandleInbound wraps the event in a Run and enqueues it on the owner's lane.
func (g *Gateway) HandleInbound(_ context.Context, event *types.InboundEvent, opts ...RunOption) error {
	run := NewRun(event.Owner, event)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}
