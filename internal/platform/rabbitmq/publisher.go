package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"aria-chat/internal/model"
)

// Publisher sends JSON payloads to a durable queue.
type Publisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewPublisher(conn *amqp.Connection, queueName string) *Publisher {
	return &Publisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *Publisher) PublishJSON(ctx context.Context, v any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish to %s failed: %w", p.queueName, err)
	}
	return nil
}

// MessagePublisher queues chat messages for the persist worker.
type MessagePublisher struct {
	*Publisher
}

func NewMessagePublisher(conn *amqp.Connection, queueName string) *MessagePublisher {
	return &MessagePublisher{Publisher: NewPublisher(conn, queueName)}
}

func (p *MessagePublisher) Publish(ctx context.Context, msg model.ChatMessage) error {
	return p.PublishJSON(ctx, msg)
}

type DocumentJobPublisher struct {
	*Publisher
}

func NewDocumentJobPublisher(conn *amqp.Connection, queueName string) *DocumentJobPublisher {
	return &DocumentJobPublisher{Publisher: NewPublisher(conn, queueName)}
}

func (p *DocumentJobPublisher) Publish(ctx context.Context, job model.DocumentJob) error {
	return p.PublishJSON(ctx, job)
}
