//go:build integration

package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicid/internal/platform/kafka"
	"civicid/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	brokers []string
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetKafka(s.T()).Brokers
}

func (s *KafkaSuite) TestPublishAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := kafka.NewClient(s.brokers)
	s.Require().NoError(err)
	s.Require().NoError(kafka.EnsureTopic(ctx, client, "civicid.test", 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, client, "civicid.test", 1, 1), "second call is a no-op")

	producer := kafka.NewProducer(client)
	defer producer.Close()
	s.Require().NoError(producer.Publish(ctx, "civicid.test", []byte("conn-1"), []byte(`{"type":"did_linked"}`)))

	consumer, err := kafka.NewConsumer(s.brokers, "", []string{"civicid.test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)

	got := make(chan *kafka.Message, 1)
	runCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = consumer.Run(runCtx, kafka.HandlerFunc(func(_ context.Context, msg *kafka.Message) error {
			got <- msg
			stop()
			return nil
		}))
	}()

	select {
	case msg := <-got:
		s.Equal("conn-1", string(msg.Key))
		s.JSONEq(`{"type":"did_linked"}`, string(msg.Value))
	case <-ctx.Done():
		s.Fail("timed out waiting for message")
	}
}
