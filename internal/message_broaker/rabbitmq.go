package message_broaker

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	exchange   string
	routingKey string
}

// NewRabbitMQ connects with the connector's settings and declares a durable
// queue named after the topic. When an exchange is configured it is declared
// as a direct exchange and the queue is bound to it.
func NewRabbitMQ(ctx context.Context, cfg types.BrokerConnector) (*RabbitMQ, error) {
	if cfg.Topic == "" {
		return nil, errors.New("broker topic is required")
	}
	addr, err := BrokerURL(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(addr, amqp.Config{Dial: dialContext(ctx)})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to broker %s", redact(addr))
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	queue, exchange, key := declaration(cfg)
	if exchange != "" {
		if err := ch.ExchangeDeclare(
			exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, errors.Wrapf(err, "declare exchange %s", exchange)
		}
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}

	if exchange != "" {
		if err := ch.QueueBind(
			queue,
			key,
			exchange,
			false,
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return nil, errors.Wrapf(err, "bind queue %s", queue)
		}
	}

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		queueName:  queue,
		exchange:   exchange,
		routingKey: key,
	}, nil
}

// BrokerURL returns the connector URL with its username and password
// applied. Credentials already in the URL are kept when the connector has
// none.
func BrokerURL(cfg types.BrokerConnector) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "invalid broker url")
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.Newf("broker url must use amqp or amqps, got %q", u.Scheme)
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String(), nil
}

// declaration returns the queue, exchange and routing key for a connector.
// Without an exchange, messages go through the default exchange, which
// routes by queue name.
func declaration(cfg types.BrokerConnector) (queue, exchange, key string) {
	queue = cfg.Topic
	exchange = cfg.Exchange
	key = cfg.RoutingKey
	if key == "" || exchange == "" {
		key = cfg.Topic
	}
	return queue, exchange, key
}

const handshakeTimeout = 30 * time.Second

// dialContext dials under ctx and sets a deadline for the AMQP handshake,
// which the client clears once the connection is open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: handshakeTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func redact(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

// Publish sends message to the configured exchange. queue overrides the
// routing key when the default exchange is used.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, message []byte) error {
	key := r.routingKey
	if r.exchange == "" && queue != "" {
		key = queue
	}
	return r.channel.PublishWithContext(
		ctx,
		r.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         message,
		},
	)
}

func (r *RabbitMQ) Consume(ctx context.Context, queue string) (<-chan []byte, error) {
	if queue == "" {
		queue = r.queueName
	}
	msgs, err := r.channel.ConsumeWithContext(
		ctx,
		queue,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, 1000)

	go func() {
		defer close(out)

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Body:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		_ = r.conn.Close()
		return err
	}
	return r.conn.Close()
}
