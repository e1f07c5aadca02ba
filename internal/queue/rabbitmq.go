package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/retry"
)

const (
	issuanceExchangeName = "certmint.issuance"
	dlxExchangeName      = "certmint.dlx"

	connectTimeout  = 15 * time.Second
	reconnectBase   = time.Second
	reconnectMax    = 30 * time.Second
	reconnectJitter = 200
)

type dialFunc func(url string) (*amqp.Connection, error)

// RabbitMQ owns the broker connection shared by the batch publisher and
// consumers. The issuance topology is declared once per connection.
type RabbitMQ struct {
	url     string
	dial    dialFunc
	backoff retry.Policy
	logger  *zap.Logger

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
	declared    bool
}

func NewRabbitMQ(ctx context.Context, url string, logger *zap.Logger) (*RabbitMQ, error) {
	r, err := newRabbitMQ(url, amqp.Dial, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func newRabbitMQ(url string, dial dialFunc, logger *zap.Logger) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQ{
		url:     url,
		dial:    dial,
		backoff: reconnectPolicy(),
		logger:  logger,
	}, nil
}

func reconnectPolicy() retry.Policy {
	policy := retry.NewPolicy(0)
	policy.BaseDelay = reconnectBase
	policy.MaxDelay = reconnectMax
	policy.MaxJitterMillis = reconnectJitter
	return policy
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// Ping reports whether the broker connection is usable.
func (r *RabbitMQ) Ping(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("rabbitmq is not initialized")
	}
	ch, err := r.channel(ctx)
	if err != nil {
		return err
	}
	return ch.Close()
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		r.logger.Warn("rabbitmq channel failed, reconnecting", zap.Error(err))
		if err := r.reconnect(ctx); err != nil {
			return nil, err
		}
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
		}
	}

	if err := r.declareOnce(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return ch, nil
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil, fmt.Errorf("rabbitmq connection closed")
	}
	return r.conn, nil
}

func (r *RabbitMQ) declareOnce(ch *amqp.Channel) error {
	r.mu.RLock()
	declared := r.declared
	r.mu.RUnlock()
	if declared {
		return nil
	}

	if err := declareTopology(ch); err != nil {
		return err
	}

	r.mu.Lock()
	r.declared = true
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) ensureConnected(ctx context.Context) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return nil
	}

	return r.reconnect(ctx)
}

// reconnect dials until it succeeds or ctx ends, backing off exponentially.
func (r *RabbitMQ) reconnect(ctx context.Context) error {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return nil
	}

	for attempt := 1; ; attempt++ {
		newConn, err := r.dial(r.url)
		if err == nil {
			r.mu.Lock()
			oldConn := r.conn
			r.conn = newConn
			r.declared = false
			r.mu.Unlock()

			if oldConn != nil && !oldConn.IsClosed() {
				_ = oldConn.Close()
			}
			if attempt > 1 {
				r.logger.Info("rabbitmq reconnected", zap.Int("attempts", attempt))
			}
			return nil
		}

		delay := r.backoff.Delay(attempt)
		r.logger.Warn("rabbitmq dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("rabbitmq reconnect canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// declareTopology sets up the issuance exchange, one durable work queue per
// routing key and a dead-letter queue for jobs that failed twice.
func declareTopology(ch *amqp.Channel) error {
	for _, exchange := range []string{issuanceExchangeName, dlxExchangeName} {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
		}
	}

	for _, queueName := range WorkQueueNames() {
		routingKey := routingKeyFor(queueName)
		dlqName := DLQName(queueName)

		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", dlqName, err)
		}
		if err := ch.QueueBind(dlqName, routingKey, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", dlqName, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    dlxExchangeName,
			"x-dead-letter-routing-key": routingKey,
		}
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", queueName, err)
		}
		if err := ch.QueueBind(queueName, routingKey, issuanceExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", queueName, err)
		}
	}

	return nil
}
