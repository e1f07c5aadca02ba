package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	batchMessageType = "issuance.batch"
	publisherAppID   = "certmint-api"
)

// RabbitMQPublisher sends batch jobs through the issuance exchange and waits
// for the broker to confirm each one, so an accepted batch is never silently lost.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg BatchJobMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := p.publishing(msg)
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(
		ctx, issuanceExchangeName, routingKeyFor(queue), false, false, publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish batch %s to queue %q: %w", msg.BatchID, queue, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("batch %s publish confirmation: %w", msg.BatchID, err)
	}
	if !acked {
		return fmt.Errorf("broker refused batch %s", msg.BatchID)
	}

	return nil
}

func (p *RabbitMQPublisher) publishing(msg BatchJobMessage) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid batch job message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal batch job message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     p.now().UTC(),
		Type:          batchMessageType,
		AppId:         publisherAppID,
		MessageId:     msg.BatchID,
		CorrelationId: msg.CorrelationID,
		Headers: amqp.Table{
			"x-record-count": strconv.Itoa(msg.RecordCount),
		},
		Body: payload,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
