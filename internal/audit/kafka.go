package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// NewProducerConfig returns the sarama settings the audit trail relies on:
// every event is acknowledged by all in-sync replicas before Record returns.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "nomad-hub-api"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

type KafkaRecorder struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewKafkaRecorder(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaRecorder {
	return &KafkaRecorder{
		producer: producer,
		topic:    topic,
		log:      log.Named("audit"),
	}
}

func (r *KafkaRecorder) Record(_ context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	// Events of one payment land on one partition, in order.
	if event.PaymentID != "" {
		msg.Key = sarama.StringEncoder(event.PaymentID)
	}

	partition, offset, err := r.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish audit event %s: %w", event.Type, err)
	}

	r.log.Debug("audit event published",
		zap.String("event", string(event.Type)),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (r *KafkaRecorder) Close() error {
	return r.producer.Close()
}
