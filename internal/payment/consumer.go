// Package payment consumes payment confirmations from RabbitMQ and marks
// the named orders paid.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"
	"orderhub/internal/xpkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

var ErrMalformed = errors.New("malformed payment confirmation")

// Confirmation is the message body on the payment queue.
type Confirmation struct {
	OrderID string `json:"order_id"`
}

type Confirmer interface {
	MarkPaid(ctx context.Context, orderID string) (models.Order, error)
}

// Acknowledger is the part of amqp.Delivery the consumer settles with.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Consumer struct {
	mq      *rabbitmq.RabbitMQ
	orders  Confirmer
	workers int
	mylog   logger.Logger
}

func NewConsumer(mq *rabbitmq.RabbitMQ, orders Confirmer, workers int, mylog logger.Logger) *Consumer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Consumer{mq: mq, orders: orders, workers: workers, mylog: mylog}
}

// Run consumes until ctx ends. In-flight messages finish before it returns.
func (c *Consumer) Run(ctx context.Context) error {
	mylog := c.mylog.Action("payment_consumer")
	if err := c.mq.DeclarePaymentQueue(); err != nil {
		return fmt.Errorf("declare payment queue: %w", err)
	}

	for {
		deliveries, err := c.mq.ConsumeMessage(ctx, rabbitmq.PaymentQueue, "")
		if err != nil {
			return fmt.Errorf("consume %s: %w", rabbitmq.PaymentQueue, err)
		}
		mylog.Info("Consuming payment confirmations", "queue", rabbitmq.PaymentQueue, "workers", c.workers)

		c.work(ctx, deliveries)

		if ctx.Err() != nil {
			mylog.Info("Stopping payment consumption due to context cancel")
			return nil
		}
		mylog.Warn("Payment consumer lost its channel, reconnecting")
		if err := c.mq.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.mq.DeclarePaymentQueue(); err != nil {
			return fmt.Errorf("declare payment queue: %w", err)
		}
	}
}

func (c *Consumer) work(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			g.Go(func() error {
				c.Handle(context.WithoutCancel(ctx), d.Body, &d)
				return nil
			})
		}
	}
}

// Handle processes one message and settles it. Malformed messages and
// unknown orders go to the dead letter queue; store failures are requeued.
func (c *Consumer) Handle(ctx context.Context, body []byte, ack Acknowledger) {
	requeue, err := c.processMsg(ctx, body)
	if err == nil {
		if err := ack.Ack(false); err != nil {
			c.mylog.Action("ack").Error("Failed to ack", err)
		}
		return
	}

	c.mylog.Action("process_msg").Error("Failed to process payment confirmation", err, "requeue", requeue)
	if err := ack.Nack(false, requeue); err != nil {
		c.mylog.Action("nack").Error("Failed to nack", err)
	}
	if !requeue {
		c.mylog.Action("nack").Debug("send to dead letter queue")
	}
}

func (c *Consumer) processMsg(ctx context.Context, body []byte) (bool, error) {
	var msg Confirmation
	if err := json.Unmarshal(body, &msg); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg.OrderID = strings.TrimSpace(msg.OrderID)
	if msg.OrderID == "" {
		return false, fmt.Errorf("%w: order_id is required", ErrMalformed)
	}

	order, err := c.orders.MarkPaid(ctx, msg.OrderID)
	switch {
	case errors.Is(err, core.ErrOrderNotFound):
		return false, err
	case err != nil:
		return true, err
	}

	c.mylog.Action("payment_confirmed").WithGroup("details").With("order_id", order.ID, "order_number", order.Number).Info("Order marked paid")
	return false, nil
}
