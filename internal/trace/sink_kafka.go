package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the Kafka sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes records keyed by event id, so one event's records stay
// on one partition in order.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) (*KafkaSink, error) {
	if producer == nil {
		return nil, errors.New("trace producer is required")
	}
	return &KafkaSink{producer: producer, topic: topic}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, r Record) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(r.EventID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "stage", Value: []byte(r.Stage)},
			{Key: "status", Value: []byte(r.Status)},
		},
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce trace: %w", err)
	}
	return nil
}
