package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/teamworkery/kakao-order/pkg/logger"
)

const (
	OrdersExchange = "orders_topic"
	DeadLetterExch = "orders_dlx"
	DeadLetterQ    = "orders_dlq"
	WebhooksQueue  = "webhooks_queue"
	RetryQueue     = "webhooks_retry"

	// retryRoutingKey is what expired retry messages are re-routed with.
	retryRoutingKey = "order.retry"
	retryDelay      = 5 * time.Second
	reconnectDelay  = 5 * time.Second
)

// Rabbit holds one connection and channel and re-dials them when the broker drops
// the connection. setup runs on every fresh channel.
type Rabbit struct {
	mu         sync.RWMutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	url        string
	setup      func(ch *amqp.Channel) error
	logger     *logger.Logger
	closed     chan struct{}
	DurationMs int64
}

func newRabbit(url string, setup func(ch *amqp.Channel) error, logger *logger.Logger) (*Rabbit, error) {
	r := &Rabbit{url: url, setup: setup, logger: logger, closed: make(chan struct{})}
	if err := r.connect(); err != nil {
		return nil, err
	}

	// start reconnect watcher
	go r.handleReconnect(reconnectDelay)
	return r, nil
}

func (r *Rabbit) connect() error {
	start := time.Now()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := r.setup(ch); err != nil {
		conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.DurationMs = time.Since(start).Milliseconds()
	r.mu.Unlock()

	r.logger.Info("", "rabbitmq_connected", "Connected to RabbitMQ", map[string]interface{}{"duration_ms": r.DurationMs})
	return nil
}

func (r *Rabbit) handleReconnect(backoff time.Duration) {
	for {
		r.mu.RLock()
		errs := r.conn.NotifyClose(make(chan *amqp.Error, 1))
		r.mu.RUnlock()

		select {
		case <-r.closed:
			return
		case e, ok := <-errs:
			if !ok || e == nil {
				// Graceful close.
				return
			}
			r.logger.Warn("", "rabbitmq_connection_lost", "RabbitMQ connection closed, reconnecting", map[string]interface{}{"reason": e.Error()})
		}

		for {
			select {
			case <-r.closed:
				return
			case <-time.After(backoff):
			}
			if err := r.connect(); err != nil {
				r.logger.Error("", "rabbitmq_reconnect_failed", "Reconnect failed", err, nil)
				continue
			}
			break
		}
	}
}

// Channel returns the current channel; it changes after a reconnect.
func (r *Rabbit) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch
}

func (r *Rabbit) Close() {
	select {
	case <-r.closed:
		return
	default:
		close(r.closed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// ErrPublishNacked is returned when the broker refuses responsibility for a message.
var ErrPublishNacked = errors.New("rabbitmq: publish nacked by broker")

// withConfirms puts every fresh channel into publisher-confirm mode after setup.
func withConfirms(setup func(ch *amqp.Channel) error) func(ch *amqp.Channel) error {
	return func(ch *amqp.Channel) error {
		if err := setup(ch); err != nil {
			return err
		}
		return ch.Confirm(false)
	}
}

// publishConfirmed returns only once the broker has acked msg.
func (r *Rabbit) publishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	conf, err := r.Channel().PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}
	if conf == nil {
		return errors.New("rabbitmq: channel is not in confirm mode")
	}
	return awaitConfirm(ctx, conf)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func awaitConfirm(ctx context.Context, conf confirmation) error {
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for publish confirm: %w", err)
	}
	if !acked {
		return ErrPublishNacked
	}
	return nil
}

// setupOrdersExchange declares the topic exchange order events are published to.
func setupOrdersExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		OrdersExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // args
	)
}

// setupWebhookTopology declares the webhook queue with its dead-letter and retry queues.
func setupWebhookTopology(ch *amqp.Channel, prefetch int) error {
	if err := setupOrdersExchange(ch); err != nil {
		return err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return err
	}

	// Dead letter exchange
	if err := ch.ExchangeDeclare(DeadLetterExch, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadLetterQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DeadLetterQ, "#", DeadLetterExch, false, nil); err != nil {
		return err
	}

	// Main queue with DLX policy
	if _, err := ch.QueueDeclare(WebhooksQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExch,
	}); err != nil {
		return err
	}
	if err := ch.QueueBind(WebhooksQueue, "order.#", OrdersExchange, false, nil); err != nil {
		return err
	}

	// Retry queue: messages wait out the TTL, then dead-letter back into the topic.
	_, err := ch.QueueDeclare(RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             int32(retryDelay / time.Millisecond),
		"x-dead-letter-exchange":    OrdersExchange,
		"x-dead-letter-routing-key": retryRoutingKey,
	})
	return err
}
