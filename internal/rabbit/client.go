package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

type Config struct {
	URL      string
	Exchange string
	Queue    string
	// Delayed declares an x-delayed-message exchange so Publish can
	// schedule redeliveries. It needs the delayed-message plugin.
	Delayed bool
}

type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	delayed  bool
	mu       sync.Mutex
}

func NewRabbit(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		zlog.Logger.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		delayed:  cfg.Delayed,
	}

	kind, args := "direct", amqp.Table(nil)
	if cfg.Delayed {
		kind, args = "x-delayed-message", amqp.Table{"x-delayed-type": "direct"}
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, kind, true, false, false, false, args); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.Queue, cfg.Exchange, false, nil); err != nil {
		client.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	if err := ch.Qos(8, 0, false); err != nil {
		client.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	zlog.Logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Bool("delayed", cfg.Delayed).
		Msg("RabbitMQ initialized")

	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	zlog.Logger.Info().Msg("RabbitMQ connection closed")
}

// Publish sends a persistent JSON message. delaySeconds is honoured only on
// a delayed exchange; otherwise the message is delivered right away.
func (c *Client) Publish(message []byte, delaySeconds int) error {
	headers := amqp.Table{}
	if c.delayed && delaySeconds > 0 {
		headers["x-delay"] = int32(delaySeconds * 1000)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mu.Lock()
	err := c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         message,
		Timestamp:    time.Now(),
		Headers:      headers,
	})
	c.mu.Unlock()

	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to publish message to RabbitMQ")
		return err
	}
	zlog.Logger.Debug().Str("exchange", c.exchange).Int("delay_seconds", delaySeconds).Msg("message published")
	return nil
}

// Consume delivers messages to handler until ctx is cancelled. A handler
// error requeues the message.
func (c *Client) Consume(ctx context.Context, handler func([]byte) error) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					zlog.Logger.Warn().Msg("RabbitMQ delivery channel closed")
					return
				}
				if err := handler(d.Body); err != nil {
					zlog.Logger.Warn().Err(err).Msg("failed to process message")
					_ = d.Nack(false, true)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	zlog.Logger.Info().Str("queue", c.queue).Msg("Started consuming")
	return nil
}
