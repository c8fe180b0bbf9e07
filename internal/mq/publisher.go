package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/taskflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeForAction возвращает тип сообщения для действия журнала.
func MessageTypeForAction(action domain.LogAction) MessageType {
	return MessageType("audit." + string(action))
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения (совпадает с ID записи журнала).
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewAuditMessage оборачивает запись журнала в сообщение.
func NewAuditMessage(entry *domain.LogEntry) *Message {
	return &Message{
		ID:        entry.ID.String(),
		Type:      MessageTypeForAction(entry.Action),
		Payload:   entry,
		Timestamp: entry.Timestamp,
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishLogEntries публикует записи журнала в taskflow.audit.
// Routing key — действие записи. Публикуются все записи, ошибки объединяются.
func (p *Publisher) PublishLogEntries(ctx context.Context, entries []*domain.LogEntry) error {
	var errs []error
	for _, entry := range entries {
		if err := p.Publish(ctx, ExchangeAudit, RoutingKey(entry.Action), NewAuditMessage(entry)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
