package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes one serialized audit event.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
	Close()
}

// KafkaProducer publishes audit events to a single Kafka topic.
type KafkaProducer struct {
	client *kgo.Client
}

// NewKafkaProducer connects to the brokers and ensures the audit topic
// exists before the first produce.
func NewKafkaProducer(ctx context.Context, brokers []string, topic string) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create audit topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create audit topic %s: %w", topic, resp.Err)
	}

	return &KafkaProducer{client: client}, nil
}

// Produce sends one record and waits for the broker ack.
func (p *KafkaProducer) Produce(ctx context.Context, key, value []byte) error {
	rec := &kgo.Record{Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
