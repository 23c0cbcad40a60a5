package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"aria-chat/internal/platform/rabbitmq"
)

// handleFunc processes one delivery body. A returned error drops the
// delivery without requeue.
type handleFunc func(ctx context.Context, body []byte) error

// consumer runs a single goroutine reading one durable queue.
type consumer struct {
	conn      *amqp.Connection
	queueName string
	handle    handleFunc
	log       zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *consumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, c.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	c.log.Info().Str("queue", c.queueName).Msg("worker started")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.log.Warn().Str("queue", c.queueName).Msg("delivery channel closed")
					return
				}

				if err := c.handle(workerCtx, d.Body); err != nil {
					c.log.Error().Err(err).Str("queue", c.queueName).Msg("worker handle delivery failed")
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (c *consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
