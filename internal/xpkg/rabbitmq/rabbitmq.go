package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"orderhub/internal/xpkg/config"
	"orderhub/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ReconnInterval = 5 * time.Second

	// OrderEventsExchange carries order snapshots between instances; the
	// routing key is the fan-out topic.
	OrderEventsExchange = "order_events"
	// PaymentQueue receives {order_id} confirmations from the payment flow.
	PaymentQueue = "payment_confirmations"
	PaymentDLX   = "payment_confirmations_dlx"
	PaymentDLQ   = "payment_confirmations_dlq"
)

var (
	ErrConnClosed = errors.New("rabbitmq connection closed")
	ErrChClosed   = errors.New("rabbitmq channel closed")
)

type RabbitMQ struct {
	ctx          context.Context
	cfg          *config.RabbitMQ
	conn         *amqp.Connection
	ch           *amqp.Channel
	mylog        logger.Logger
	reconnecting bool
	mu           sync.Mutex

	prefetch int
}

// New dials RabbitMQ and opens a confirm-mode channel.
func New(ctx context.Context, cfg *config.RabbitMQ, mylog logger.Logger, prefetch int) (*RabbitMQ, error) {
	r := &RabbitMQ{
		ctx:      ctx,
		cfg:      cfg,
		mylog:    mylog,
		prefetch: prefetch,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s:%s/%s",
		r.cfg.User,
		r.cfg.Password,
		r.cfg.Host,
		r.cfg.Port,
		r.cfg.VHost,
	))
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return err
	}

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			conn.Close()
			return err
		}
	}

	r.mu.Lock()
	stale := r.conn
	r.conn = conn
	r.ch = ch
	r.mu.Unlock()

	// a dead channel can leave its connection open
	if stale != nil {
		if err := closeStale(stale); err != nil {
			r.mylog.Action("rabbitmq_reconnecting").Warn("Failed to close previous connection", "reason", err.Error())
		}
	}
	return nil
}

type connCloser interface {
	IsClosed() bool
	Close() error
}

func closeStale(c connCloser) error {
	if c.IsClosed() {
		return nil
	}
	return c.Close()
}

func (r *RabbitMQ) IsAlive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return ErrConnClosed
	}
	if r.ch == nil || r.ch.IsClosed() {
		return ErrChClosed
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// DeclareOrderEvents declares the topic exchange used for cross-instance fan-out.
func (r *RabbitMQ) DeclareOrderEvents() error {
	return r.channel().ExchangeDeclare(
		OrderEventsExchange, // name
		"topic",             // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
}

// DeclareInstanceQueue declares a server-named exclusive queue bound to
// every order event. It disappears with the connection.
func (r *RabbitMQ) DeclareInstanceQueue() (string, error) {
	ch := r.channel()
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", err
	}
	if err := ch.QueueBind(q.Name, "#", OrderEventsExchange, false, nil); err != nil {
		return "", err
	}
	return q.Name, nil
}

// DeclarePaymentQueue declares the payment confirmation queue and its
// dead letter queue.
func (r *RabbitMQ) DeclarePaymentQueue() error {
	ch := r.channel()
	if err := ch.ExchangeDeclare(PaymentDLX, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(PaymentDLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(PaymentDLQ, "", PaymentDLX, false, nil); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(
		PaymentQueue, // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		amqp.Table{
			"x-dead-letter-exchange": PaymentDLX,
		},
	)
	return err
}

func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := r.IsAlive(); err != nil {
		r.mylog.Action("rabbitmq_publish").Error("connection between rabbitmq is closed", err)
		go r.reconnect(r.ctx)
		return err
	}

	return r.channel().PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

func (r *RabbitMQ) ConsumeMessage(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	return r.channel().ConsumeWithContext(ctx, queue, consumer, false, false, false, false, nil)
}

// NotifyClose reports the connection closing, so consumers can resubscribe.
func (r *RabbitMQ) NotifyClose() <-chan *amqp.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Reconnect blocks until a new connection is established or ctx ends.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	for {
		r.reconnect(ctx)
		if err := r.IsAlive(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (r *RabbitMQ) channel() *amqp.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(ReconnInterval)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				log.Info("rabbitmq reconnected")
				return
			}
			log.Info("rabbitmq failed to reconnect")
		case <-ctx.Done():
			return
		}
	}
}
