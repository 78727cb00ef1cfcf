package notify

import (
	"time"
)

type Type string

const (
	TaskAssigned  Type = "TASK_ASSIGNED"
	TaskApproved  Type = "TASK_APPROVED"
	TaskCompleted Type = "TASK_COMPLETED"
)

// Notification is a fire-and-forget message addressed to one user.
type Notification struct {
	Type    Type           `json:"type"`
	UserID  string         `json:"user_id"`
	TaskID  string         `json:"task_id,omitempty"`
	ActorID string         `json:"actor_id"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink receives notifications. Notify must not block and never reports
// delivery failures to the caller.
type Sink interface {
	Notify(n Notification)
}

type discard struct{}

func (discard) Notify(Notification) {}

// Discard drops every notification.
var Discard Sink = discard{}
