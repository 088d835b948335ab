// Package audit provides the audit trail contract and entity enrichment
// helpers used by document services.
package audit

import (
	"context"

	"stockpost/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionPost     Action = "post"
	ActionCancel   Action = "cancel"
	ActionStart    Action = "start"
	ActionCount    Action = "count"
	ActionComplete Action = "complete"
)

// Sink records audit entries. It is fire-and-forget from the caller's
// point of view: services log failures and never fail a transition on
// a sink error.
type Sink interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action Action, payload map[string]any) error
}

// NopSink discards all entries. Used in tests and tools.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, entityType string, entityID id.ID, action Action, payload map[string]any) error {
	return nil
}

var _ Sink = NopSink{}
