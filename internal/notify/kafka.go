package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"trailguard/internal/emergency/models"
)

// Kafka publishes received emergencies to a topic so external consumers
// (dispatch desks, alerting pipelines) can subscribe without touching the
// ledger. Produce is fire-and-forget; a broker outage is logged, not fatal.
type Kafka struct {
	Base
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// The topic may already exist or be auto-created; log and continue.
		logger.Debug("kafka topic ensure", "topic", topic, "error", err)
	}

	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

func (k *Kafka) EmergencyReceived(ctx context.Context, em models.Emergency) {
	body, err := json.Marshal(em)
	if err != nil {
		k.logger.Warn("kafka encode failed", "emergency_id", em.ID.String(), "error", err)
		return
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(em.ID.String()),
		Value: body,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("kafka publish failed", "emergency_id", em.ID.String(), "error", err)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.client.Flush(ctx); err != nil {
		k.logger.Warn("kafka flush on close", "error", err)
	}
	k.client.Close()
}
