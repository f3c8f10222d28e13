package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"civicid/internal/platform/config"
	"civicid/internal/platform/kafka"
	audit "civicid/pkg/platform/audit"
	"civicid/pkg/platform/audit/consumer"
	strutil "civicid/pkg/platform/strings"
)

func newEventsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read domain events from Kafka",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print events as they are published",
		Long: `
Print events as they are published. Without --group the topic is read from
the beginning and no offsets are committed.
	`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			brokers := strutil.SplitList(c.v.GetString("events.brokers"))
			if len(brokers) == 0 {
				return errors.New("no brokers configured, set --brokers or CIVICCTL_EVENTS_BROKERS")
			}
			log := c.logger()
			topic := c.v.GetString("events.topic")
			reader, err := kafka.NewConsumer(brokers, c.v.GetString("events.group"), []string{topic}, log)
			if err != nil {
				return err
			}

			want := audit.EventType(c.v.GetString("events.type"))
			router := consumer.NewRouter(log, consumer.EventHandlerFunc(func(_ context.Context, event audit.Event) error {
				if want != "" && event.Type != want {
					return nil
				}
				return c.print(event)
			}))
			err = reader.Run(cmd.Context(), router)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	tail.Flags().String("brokers", "", flagInfo("comma separated broker list", "events.brokers"))
	tail.Flags().String("topic", config.DefaultEventsTopic, flagInfo("events topic", "events.topic"))
	tail.Flags().String("group", "", flagInfo("consumer group", "events.group"))
	tail.Flags().String("type", "", flagInfo("only print this event type", "events.type"))
	c.bind("events", tail.Flags())

	cmd.AddCommand(tail)
	return cmd
}
