package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/xpkg/logger"
	"orderhub/internal/xpkg/rabbitmq"
)

// LocalPublisher fans out directly into an in-process hub.
type LocalPublisher struct {
	hub *Hub
}

func NewLocalPublisher(h *Hub) *LocalPublisher {
	return &LocalPublisher{hub: h}
}

func (p *LocalPublisher) Publish(ctx context.Context, req lifecycle.PublishRequest) error {
	var errs []error
	for _, t := range req.Topics {
		if _, err := p.hub.Publish(t, req.Kind, req.Order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broker is the slice of the RabbitMQ adapter the bridge needs.
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// BrokerPublisher sends one message per topic to the order events
// exchange; every instance's BrokerBridge delivers it locally.
type BrokerPublisher struct {
	broker Broker
}

func NewBrokerPublisher(b Broker) *BrokerPublisher {
	return &BrokerPublisher{broker: b}
}

func (p *BrokerPublisher) Publish(ctx context.Context, req lifecycle.PublishRequest) error {
	var errs []error
	for _, t := range req.Topics {
		body, err := json.Marshal(Event{Kind: req.Kind, Topic: t, Order: req.Order})
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := p.broker.Publish(ctx, rabbitmq.OrderEventsExchange, t, body); err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// BrokerBridge consumes this instance's queue on the order events
// exchange and republishes into the local hub.
type BrokerBridge struct {
	hub   *Hub
	mq    *rabbitmq.RabbitMQ
	mylog logger.Logger
}

func NewBrokerBridge(h *Hub, mq *rabbitmq.RabbitMQ, mylog logger.Logger) *BrokerBridge {
	return &BrokerBridge{hub: h, mq: mq, mylog: mylog}
}

// Run consumes until ctx ends, redeclaring its queue after reconnects.
func (b *BrokerBridge) Run(ctx context.Context) error {
	mylog := b.mylog.Action("broker_bridge")
	if err := b.mq.DeclareOrderEvents(); err != nil {
		return fmt.Errorf("declare order events exchange: %w", err)
	}

	for {
		queue, err := b.mq.DeclareInstanceQueue()
		if err != nil {
			return fmt.Errorf("declare instance queue: %w", err)
		}
		deliveries, err := b.mq.ConsumeMessage(ctx, queue, "")
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
		mylog.Info("Broker bridge consuming", "queue", queue)

		for d := range deliveries {
			if err := b.dispatch(d.Body); err != nil {
				mylog.Error("Dropped malformed order event", err)
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}

		if ctx.Err() != nil {
			return nil
		}
		mylog.Warn("Broker bridge lost its channel, reconnecting")
		if err := b.mq.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (b *BrokerBridge) dispatch(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Topic == "" {
		return ErrEmptyTopic
	}
	_, err := b.hub.Publish(ev.Topic, ev.Kind, ev.Order)
	return err
}
