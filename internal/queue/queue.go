package queue

import "context"

// Publisher publishes delivery events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event DeliveryEvent) error
	Close() error
}

const (
	// RecordedQueueName carries one event per persisted delivery, consumed
	// by the external reconciliation process.
	RecordedQueueName = "envio.recorded"

	// RecordedDLQName is the dead-letter queue for delivery events.
	RecordedDLQName = "dlq.envio.recorded"
)
