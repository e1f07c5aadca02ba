package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/retry"
)

// RabbitMQConsumer delivers batch jobs to a handler, one unacked job per
// prefetch slot. A job whose handler fails is retried once, then dead-lettered.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	backoff  retry.Policy
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		backoff:  reconnectPolicy(),
		logger:   logger,
	}
}

// Consume blocks until ctx ends, resubscribing whenever the channel drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	failures := 0
	for {
		err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		delay := c.backoff.Delay(failures)
		c.logger.Warn("batch consumer interrupted",
			zap.String("queue", queue),
			zap.Int("failures", failures),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	tag := "certmint-worker-" + uuid.NewString()
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}
	c.logger.Debug("batch consumer subscribed", zap.String("queue", queue), zap.String("consumerTag", tag))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, fromAMQP(d), handler); err != nil {
				return err
			}
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple bool, requeue bool) error
	Reject(requeue bool) error
}

type delivery struct {
	ack           acknowledger
	body          []byte
	routingKey    string
	correlationID string
	redelivered   bool
}

func fromAMQP(d amqp.Delivery) delivery {
	return delivery{
		ack:           d,
		body:          d.Body,
		routingKey:    d.RoutingKey,
		correlationID: d.CorrelationId,
		redelivered:   d.Redelivered,
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d delivery, handler MessageHandler) error {
	var msg BatchJobMessage
	if err := json.Unmarshal(d.body, &msg); err != nil {
		c.logger.Warn("rejecting batch job: invalid JSON",
			zap.Error(err),
			zap.String("routingKey", d.routingKey),
		)
		if rejectErr := d.ack.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid message: %w", rejectErr)
		}
		return nil
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("rejecting batch job: validation failed",
			zap.Error(err),
			zap.String("batchId", msg.BatchID),
		)
		if rejectErr := d.ack.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}
	if strings.TrimSpace(msg.CorrelationID) == "" {
		msg.CorrelationID = d.correlationID
	}

	if err := handler(ctx, msg); err != nil {
		// A second failure dead-letters the job instead of looping on it.
		requeue := !d.redelivered
		c.logger.Warn("batch job failed",
			zap.Error(err),
			zap.String("batchId", msg.BatchID),
			zap.Bool("requeue", requeue),
		)
		if nackErr := d.ack.Nack(false, requeue); nackErr != nil {
			return fmt.Errorf("handler failed and nack failed: %w", nackErr)
		}
		return nil
	}

	if err := d.ack.Ack(false); err != nil {
		return fmt.Errorf("failed to ack delivery: %w", err)
	}

	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
