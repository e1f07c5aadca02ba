package queue

import (
	"context"
	"fmt"
)

// Publisher publishes batch jobs to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BatchJobMessage) error
	Close() error
}

// MessageHandler handles a consumed batch job.
type MessageHandler func(ctx context.Context, msg BatchJobMessage) error

// Consumer consumes batch jobs from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// BatchQueueName is the work queue holding pending issuance batches.
	BatchQueueName = "issuance.batches"

	batchRoutingKey = "batch.created"
)

// DLQName returns the dead-letter queue name for a work queue, e.g. dlq.issuance.batches.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns all work queues.
func WorkQueueNames() []string {
	return []string{BatchQueueName}
}

// routingKeyFor returns the issuance exchange routing key bound to queue.
func routingKeyFor(queue string) string {
	switch queue {
	case BatchQueueName:
		return batchRoutingKey
	default:
		return queue
	}
}
