package streaming

import (
	"context"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

const DefaultTopic = "sales"

type Kafka struct {
	client *kgo.Client
	topic  string
}

// Brokers is a comma separated list of seed brokers.
func NewKafka(brokers string, topic string) (*Kafka, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &Kafka{
		client: client,
		topic:  topic,
	}, nil
}

func (kafka *Kafka) Publish(ctx context.Context, envelope *EventEnvelope) error {
	b, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	record := &kgo.Record{
		Topic: kafka.topic,
		Key:   []byte(envelope.Key()),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(envelope.EventType)},
			{Key: "content-type", Value: []byte(ContentType)},
		},
	}

	result := kafka.client.ProduceSync(ctx, record)

	return result.FirstErr()
}

func (kafka *Kafka) Close() {
	kafka.client.Close()
}
