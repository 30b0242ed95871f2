package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic receives every realtime message.
const DefaultKafkaTopic = "press.entries"

// KafkaWriter is the part of *kafka.Writer the broadcaster uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes messages to one topic keyed by entry id, so all events of
// an entry land on the same partition in order.
type Kafka struct {
	writer KafkaWriter
	topic  string
}

var _ Broadcaster = (*Kafka)(nil)

// NewKafka returns a broadcaster writing to brokers asynchronously.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("press: kafka broadcaster requires at least one broker")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaWithWriter(w, topic), nil
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w KafkaWriter, topic string) *Kafka {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &Kafka{writer: w, topic: topic}
}

// Publish implements Broadcaster.
func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("press: encode realtime message: %w", err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(msg.Data.EntryID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(msg.Type)},
			{Key: "space_id", Value: []byte(msg.SpaceID)},
		},
	})
	if err != nil {
		return fmt.Errorf("press: publish to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
