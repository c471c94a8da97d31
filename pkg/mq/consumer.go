package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig declares one durable queue on a topic exchange. When DLX is
// set, rejected deliveries (Nack without requeue) are dead-lettered to that
// exchange and parked on DLXQueue instead of being lost.
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Keys     []string
	Prefetch int
	DLX      string
	DLXQueue string
}

type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			closeAll()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if cfg.DLX != "" {
		if err := ch.ExchangeDeclare(cfg.DLX, "fanout", true, false, false, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("declare dlx: %w", err)
		}
		dq, err := ch.QueueDeclare(cfg.DLXQueue, true, false, false, false, nil)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("declare dlx queue: %w", err)
		}
		if err := ch.QueueBind(dq.Name, "", cfg.DLX, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("bind dlx queue: %w", err)
		}
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, queueArgs(cfg))
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range cfg.Keys {
		if err := ch.QueueBind(q.Name, rk, cfg.Exchange, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name}, nil
}

// queueArgs builds the main queue's declaration arguments.
func queueArgs(cfg ConsumerConfig) amqp.Table {
	if cfg.DLX == "" {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": cfg.DLX}
}

func (c *Consumer) Deliveries(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
