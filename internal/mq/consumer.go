package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/taskflow/internal/domain"
)

// Handler обрабатывает одно сообщение. Ошибка означает nack с возвратом в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Entry декодирует payload как запись журнала аудита.
func (d *Delivery) Entry() (domain.LogEntry, error) {
	return ParsePayload[domain.LogEntry](&d.Message)
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди. Игнорируется, если задан Declare.
	Queue Queue

	// Declare вызывается перед каждым (пере)запуском потребления и
	// возвращает очередь. Нужен для временных очередей, которые
	// исчезают вместе с соединением.
	Declare func(ctx context.Context) (Queue, error)

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений (по умолчанию 1).
	Prefetch int
}

// Consumer потребляет сообщения из очереди и переживает reconnect.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{conn: conn, logger: logger, cfg: cfg}
}

// Run потребляет сообщения до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, queue, err := c.subscribe(ctx)
		if err != nil {
			c.logger.Error("failed to subscribe", "queue", queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			c.drain(ctx, queue, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer interrupted, waiting for reconnect", "queue", queue)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, Queue, error) {
	queue := c.cfg.Queue
	if c.cfg.Declare != nil {
		q, err := c.cfg.Declare(ctx)
		if err != nil {
			return nil, queue, fmt.Errorf("declare: %w", err)
		}
		queue = q
	}

	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		var err error
		deliveries, err = ch.ConsumeWithContext(ctx,
			string(queue), // queue
			"",            // consumer tag
			false,         // auto-ack
			false,         // exclusive
			false,         // no-local
			false,         // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, queue, err
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, queue Queue, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, queue, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, queue Queue, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "queue", queue, "error", err)
		// битое сообщение уходит в DLQ
		raw.Nack(false, false)
		return
	}

	if err := c.cfg.Handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("handler failed",
			"queue", queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
