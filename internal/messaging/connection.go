package messaging

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"cafe-orders/internal/config"
	"cafe-orders/internal/logger"
)

const (
	// EventsExchange carries every committed order and payment event, routed by event type
	EventsExchange = "order_events"
	// NotificationsQueue feeds the notifier process
	NotificationsQueue = "notifications_queue"

	connectAttempts = 5
)

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New creates a new RabbitMQ connection and declares the event topology
func New(cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Connection) connect() error {
	var err error

	for i := 0; i < connectAttempts; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", setupErr, nil)
					c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				c.conn.Close()
			}
		}

		if i < connectAttempts-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", wait),
				"startup", err, nil)
			time.Sleep(wait)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectAttempts, err)
}

func (c *Connection) setupTopology() error {
	err := c.channel.ExchangeDeclare(
		EventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", EventsExchange, err)
	}

	_, err = c.channel.QueueDeclare(
		NotificationsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		amqp091.Table{
			"x-message-ttl": 86400000, // one day
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare notifications queue: %w", err)
	}

	err = c.channel.QueueBind(
		NotificationsQueue, // queue name
		"#",                // every event
		EventsExchange,     // exchange
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind notifications queue: %w", err)
	}

	return nil
}

// DeclareExclusiveQueue declares a server-named queue that lives as long as this
// connection and binds it to the events exchange for each routing key.
func (c *Connection) DeclareExclusiveQueue(routingKeys ...string) (string, error) {
	q, err := c.channel.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare exclusive queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := c.channel.QueueBind(q.Name, key, EventsExchange, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind queue %s with routing key %s: %w", q.Name, key, err)
		}
	}

	return q.Name, nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	return c.channel
}

func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ
func (c *Connection) Reconnect() error {
	c.close()
	return c.connect()
}
