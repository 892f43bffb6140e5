package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"solana-pool-sniper/internal/observability"
)

// Alert is the Kafka payload for one operator alert.
type Alert struct {
	Text   string `json:"text"`
	SentAt int64  `json:"sent_at"` // unix ms
}

// KafkaNotifier publishes alerts to a Kafka topic and waits for the broker ack.
type KafkaNotifier struct {
	topic string
	sp    sarama.SyncProducer
	now   func() time.Time
}

// NewKafkaNotifier dials brokers and returns a notifier publishing to topic.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	// SyncProducer requires both.
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Version = sarama.V2_1_0_0

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(sp, topic)
}

// NewKafkaNotifierWithProducer wraps an existing producer.
func NewKafkaNotifierWithProducer(sp sarama.SyncProducer, topic string) (*KafkaNotifier, error) {
	if topic == "" {
		return nil, errors.New("kafka topic empty")
	}
	return &KafkaNotifier{topic: topic, sp: sp, now: time.Now}, nil
}

// Notify implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, text string) error {
	err := n.publish(ctx, text)
	observability.RecordAlert("kafka", err)
	return err
}

func (n *KafkaNotifier) publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sentAt := n.now()
	payload, err := json.Marshal(Alert{Text: text, SentAt: sentAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     n.topic,
		Value:     sarama.ByteEncoder(payload),
		Timestamp: sentAt,
	}

	// SendMessage takes no context; only check before and after.
	if _, _, err := n.sp.SendMessage(msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return ctx.Err()
}

// Close releases the producer.
func (n *KafkaNotifier) Close() error {
	if n.sp != nil {
		return n.sp.Close()
	}
	return nil
}
