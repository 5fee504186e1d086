package gateway

import (
	"context"
	"time"

	"github.com/user/stashbot/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single handling of an inbound event for one owner.
type Run struct {
	ID        types.RunID
	Owner     types.OwnerID
	Event     *types.InboundEvent
	Status    RunStatus
	Attempts  int
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Error     error
	Ctx       context.Context
	OnReply   func(*types.Outbound)
}

// NewRun creates a Run in the Queued state for the given owner and event.
func NewRun(owner types.OwnerID, event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		Owner:     owner,
		Event:     event,
		Status:    RunStatusQueued,
		Attempts:  0,
		CreatedAt: time.Now(),
	}
}

// Reply invokes the run's reply callback, if set.
func (r *Run) Reply(out *types.Outbound) {
	if r.OnReply != nil {
		r.OnReply(out)
	}
}
