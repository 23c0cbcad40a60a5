package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"aria-chat/internal/model"
)

var errMissingSessionID = errors.New("message without session id")

type MessageCreator interface {
	Create(ctx context.Context, message *model.ChatMessage) error
}

// MessagePersistWorker writes queued assistant replies to the store.
type MessagePersistWorker struct {
	consumer
	repo MessageCreator
}

func NewMessagePersistWorker(conn *amqp.Connection, repo MessageCreator, queueName string, log zerolog.Logger) *MessagePersistWorker {
	w := &MessagePersistWorker{repo: repo}
	w.consumer = consumer{
		conn:      conn,
		queueName: queueName,
		handle:    w.handle,
		log:       log.With().Str("worker", "message_persist").Logger(),
	}
	return w
}

func (w *MessagePersistWorker) handle(ctx context.Context, body []byte) error {
	var msg model.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode message failed: %w", err)
	}
	if msg.SessionID == "" {
		return errMissingSessionID
	}
	if err := w.repo.Create(ctx, &msg); err != nil {
		return fmt.Errorf("persist message failed: %w", err)
	}
	return nil
}
