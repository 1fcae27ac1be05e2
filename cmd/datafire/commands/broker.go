package commands

import (
	"fmt"

	"github.com/RezaEskandarii/datafire/internal/message_broaker"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/spf13/cobra"
)

var BrokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Inspect broker queues",
}

var (
	tailConnector types.BrokerConnector
	tailLimit     int
)

var brokerTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print messages arriving on a task's queue",
	Long: `Consume from the queue a broker task publishes to and print each message.
Messages are acknowledged as they are read, so point this at a test queue.

Example:
  datafire broker tail --url amqp://localhost:5672/ --topic orders -n 10`,
	RunE: runBrokerTail,
}

func init() {
	f := brokerTailCmd.Flags()
	f.StringVar(&tailConnector.URL, "url", "", "amqp:// or amqps:// broker URL")
	f.StringVar(&tailConnector.Topic, "topic", "", "Queue name")
	f.StringVar(&tailConnector.Exchange, "exchange", "", "Exchange the queue is bound to")
	f.StringVar(&tailConnector.RoutingKey, "routing-key", "", "Binding key, defaults to the topic")
	f.StringVar(&tailConnector.Username, "username", "", "Broker user")
	f.StringVar(&tailConnector.Password, "password", "", "Broker password")
	f.IntVarP(&tailLimit, "limit", "n", 0, "Stop after this many messages, 0 follows forever")
	_ = brokerTailCmd.MarkFlagRequired("url")
	_ = brokerTailCmd.MarkFlagRequired("topic")

	BrokerCmd.AddCommand(brokerTailCmd)
}

func runBrokerTail(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	broker, err := message_broaker.NewRabbitMQ(ctx, tailConnector)
	if err != nil {
		return err
	}
	defer broker.Close()

	msgs, err := broker.Consume(ctx, "")
	if err != nil {
		return err
	}
	seen := 0
	for msg := range msgs {
		fmt.Fprintln(cmd.OutOrStdout(), string(msg))
		seen++
		if tailLimit > 0 && seen >= tailLimit {
			break
		}
	}
	return nil
}
