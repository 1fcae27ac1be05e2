package agent

import (
	"context"
	"encoding/json"

	"github.com/RezaEskandarii/datafire/internal/message_broaker"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

// publishBatch sends every message of a broker batch to the topic's queue
// over one connection.
func publishBatch(ctx context.Context, dial message_broaker.Dialer, data types.BrokerData) (map[string]any, error) {
	if data.Config.Topic == "" {
		return nil, errors.New("missing topic")
	}
	if len(data.Messages) == 0 {
		return nil, errors.New("missing messages")
	}

	broker, err := dial(ctx, data.Config)
	if err != nil {
		return nil, err
	}
	defer broker.Close()

	sent := 0
	for _, msg := range data.Messages {
		body, err := json.Marshal(msg)
		if err != nil {
			return nil, errors.Wrapf(err, "encode message %d", sent)
		}
		if err := broker.Publish(ctx, data.Config.Topic, body); err != nil {
			return nil, errors.Wrapf(err, "publish message %d of %d", sent+1, len(data.Messages))
		}
		sent++
	}
	return map[string]any{"sent_count": sent, "topic": data.Config.Topic}, nil
}
