package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes events as JSON records keyed by entity ID, so all
// events for one entity land on the same partition in order.
type KafkaSink struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

// NewKafkaSink connects a producer to brokers. Each Emit gives up after
// timeout so an unreachable broker cannot hold up the caller.
func NewKafkaSink(brokers []string, topic string, timeout time.Duration) (*KafkaSink, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("kafka emit timeout must be positive, got %s", timeout)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(timeout),
		kgo.ProduceRequestTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, timeout: timeout}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.EntityID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(ev.Action)},
		},
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("producing audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}
