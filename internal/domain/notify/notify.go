// Package notify defines the notification fan-out contract.
// Delivery is best-effort: state transitions enqueue events and an
// independent worker delivers them after the transaction commits.
package notify

import "context"

// Topics emitted by document state transitions.
const (
	TopicMovementSubmitted  = "movement.submitted"
	TopicStockTakeCompleted = "stocktake.completed"
)

// RoleApprover is the recipient role for approval notifications.
const RoleApprover = "approver"

// Event is one notification to fan out.
type Event struct {
	// Topic identifies the event kind
	Topic string `json:"topic"`

	// RecipientRole selects the user group to notify
	RecipientRole string `json:"recipientRole"`

	// Payload carries event-specific data for rendering
	Payload map[string]any `json:"payload"`
}

// Sink accepts events for asynchronous delivery.
// Implementations must be transactional with the caller: an event
// enqueued inside a rolled-back transaction is never delivered.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// NopSink discards all events. Used in tests and tools.
type NopSink struct{}

func (NopSink) Publish(ctx context.Context, event Event) error { return nil }

var _ Sink = NopSink{}
