package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// RecordPublisher is the part of messagepipeline.KafkaProducer the Kafka sink needs.
type RecordPublisher interface {
	Publish(ctx context.Context, rec messagepipeline.OutboundRecord) (messagepipeline.DeliveryReceipt, error)
	Stop(ctx context.Context) error
}

// KafkaSink publishes dead letters as JSON to a dedicated topic, keyed by the
// source message ID.
type KafkaSink struct {
	publisher RecordPublisher
	topic     string
	logger    zerolog.Logger
}

// NewKafkaSink creates a sink that owns publisher and stops it on Close.
func NewKafkaSink(publisher RecordPublisher, topic string, logger zerolog.Logger) (*KafkaSink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("kafka dead-letter sink requires a publisher")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka dead-letter topic is required")
	}
	return &KafkaSink{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "KafkaDeadLetterSink").Str("topic", topic).Logger(),
	}, nil
}

func (s *KafkaSink) Write(ctx context.Context, letter messagepipeline.DeadLetter) error {
	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	receipt, err := s.publisher.Publish(ctx, messagepipeline.OutboundRecord{
		Topic: s.topic,
		Key:   letter.Message.ID,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish dead letter: %w", err)
	}
	s.logger.Debug().Str("msg_id", letter.Message.ID).Int32("partition", receipt.Partition).Int64("offset", receipt.Offset).Msg("Dead letter stored.")
	return nil
}

func (s *KafkaSink) Close(ctx context.Context) error {
	return s.publisher.Stop(ctx)
}
