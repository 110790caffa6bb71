package util

import (
	"fmt"

	"relgraph/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQClient(cfg *config.Config) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: channel,
	}, nil
}

// DeclareExchange ensures a durable direct exchange exists.
func (r *RabbitMQClient) DeclareExchange(name string) error {
	return r.channel.ExchangeDeclare(
		name,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareAndBindQueue ensures a durable queue exists and is bound to the exchange.
func (r *RabbitMQClient) DeclareAndBindQueue(queue, routingKey, exchange string) error {
	if _, err := r.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	return r.channel.QueueBind(queue, routingKey, exchange, false, nil)
}

// Publish sends a persistent JSON message to the exchange.
func (r *RabbitMQClient) Publish(exchange, routingKey string, body []byte) error {
	return r.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// GetChannel exposes the underlying channel for consumers.
func (r *RabbitMQClient) GetChannel() *amqp.Channel {
	return r.channel
}

// Close closes the channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
