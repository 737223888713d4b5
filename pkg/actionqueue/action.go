// Package actionqueue is the client side of relationship mutations. It
// debounces rapid intents, keeps at most one outstanding action per
// (actor, target) pair and retries failures a bounded number of times.
package actionqueue

import (
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
)

// Status is the lifecycle state of an Action.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Outstanding reports whether the action still holds its (actor, target) slot.
func (s Status) Outstanding() bool {
	return s == StatusPending || s == StatusProcessing
}

// Action is one queued follow or unfollow.
type Action struct {
	ID         string        `json:"id"`
	Kind       protocol.Kind `json:"kind"`
	ActorID    uint          `json:"actorId"`
	TargetID   uint          `json:"targetId"`
	Status     Status        `json:"status"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
	RetryCount int           `json:"retryCount"`
	LastError  string        `json:"lastError,omitempty"`

	terminal bool
}

// Terminal reports a FAILED action that will not be retried. The caller
// should roll back whatever it applied optimistically.
func (a Action) Terminal() bool {
	return a.terminal
}

type pair struct {
	actor, target uint
}

func (a *Action) pair() pair {
	return pair{actor: a.ActorID, target: a.TargetID}
}
