package message_broaker

import (
	"context"

	"github.com/RezaEskandarii/datafire/types"
)

type MessageBroker interface {
	Publish(ctx context.Context, queue string, message []byte) error
	Consume(ctx context.Context, queue string) (<-chan []byte, error)
	Close() error
}

// Dialer opens a broker for a task's connector. The agent takes one so its
// broker handler can be tested without a running server.
type Dialer func(ctx context.Context, cfg types.BrokerConnector) (MessageBroker, error)

// DialRabbitMQ is the default Dialer.
func DialRabbitMQ(ctx context.Context, cfg types.BrokerConnector) (MessageBroker, error) {
	return NewRabbitMQ(ctx, cfg)
}
