package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stockpost/internal/core/id"
	"stockpost/internal/domain/notify"
	"stockpost/pkg/logger"
)

// NotifySink adapts the transactional outbox to the notify.Sink contract.
// Events enqueued inside a rolled-back transaction are never delivered.
type NotifySink struct {
	publisher *OutboxPublisher
}

// NewNotifySink creates an outbox-backed notification sink.
func NewNotifySink(publisher *OutboxPublisher) *NotifySink {
	return &NotifySink{publisher: publisher}
}

var _ notify.Sink = (*NotifySink)(nil)

// Publish implements notify.Sink.
func (s *NotifySink) Publish(ctx context.Context, event notify.Event) error {
	return s.publisher.Publish(ctx, DomainEvent{
		AggregateType: "notification",
		AggregateID:   id.New(),
		EventType:     event.Topic,
		Payload:       event,
	})
}

// NotificationDispatcher handles outbox notification events by writing
// in-app notification rows, one per role recipient. Runs in the worker.
type NotificationDispatcher struct {
	pool *pgxpool.Pool
}

// NewNotificationDispatcher creates a dispatcher over the given pool.
func NewNotificationDispatcher(pool *pgxpool.Pool) *NotificationDispatcher {
	return &NotificationDispatcher{pool: pool}
}

var _ OutboxHandler = (*NotificationDispatcher)(nil)

// Handle implements OutboxHandler.
func (d *NotificationDispatcher) Handle(ctx context.Context, msg *OutboxMessage) error {
	var event notify.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal notification event: %w", err)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO sys_notifications (id, topic, recipient_role, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id.New(), event.Topic, event.RecipientRole, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	logger.Info(ctx, "notification dispatched",
		"topic", event.Topic, "role", event.RecipientRole)
	return nil
}
