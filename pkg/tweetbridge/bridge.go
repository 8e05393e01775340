package tweetbridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// Subscriber is the pub/sub side of the bridge.
type Subscriber interface {
	messagepipeline.MessageConsumer
	IsConnected() bool
}

// Publisher is the log broker side of the bridge.
type Publisher interface {
	// Connect checks that the broker is reachable.
	Connect(ctx context.Context) error
	Publish(ctx context.Context, rec messagepipeline.OutboundRecord) (messagepipeline.DeliveryReceipt, error)
	Stop(ctx context.Context) error
}

// Bridge owns both broker connections and the single-worker pipeline between them.
type Bridge struct {
	subscriber Subscriber
	publisher  Publisher
	translator *Translator
	deadLetter messagepipeline.DeadLetterSink
	service    *messagepipeline.StreamingService[OutboundMessage]
	logger     zerolog.Logger

	forwarded atomic.Int64
}

// NewBridge wires subscriber -> translator -> publisher. deadLetter receives every
// message that could not be forwarded; it may be nil.
func NewBridge(
	cfg *Config,
	topic string,
	subscriber Subscriber,
	publisher Publisher,
	deadLetter messagepipeline.DeadLetterSink,
	logger zerolog.Logger,
) (*Bridge, error) {
	if subscriber == nil || publisher == nil {
		return nil, fmt.Errorf("bridge requires both a subscriber and a publisher")
	}
	if topic == "" {
		return nil, fmt.Errorf("destination topic is required")
	}
	b := &Bridge{
		subscriber: subscriber,
		publisher:  publisher,
		translator: NewTranslator(topic, cfg.KeyField),
		deadLetter: deadLetter,
		logger:     logger.With().Str("component", "Bridge").Logger(),
	}

	// Empty payloads go through to the translator, which reports them as a DecodeError.
	transformer := b.translator.Transformer()
	if cfg.MaxPayloadBytes > 0 {
		transformer = messagepipeline.WithPayloadValidation(transformer, 0, cfg.MaxPayloadBytes)
	}
	service, err := messagepipeline.NewStreamingService[OutboundMessage](
		// One worker keeps publishes in arrival order.
		messagepipeline.StreamingServiceConfig{NumWorkers: 1, DeadLetter: deadLetter},
		subscriber,
		transformer,
		b.forward,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge pipeline: %w", err)
	}
	b.service = service
	return b, nil
}

// forward publishes one translated message and waits for the broker acknowledgment.
func (b *Bridge) forward(ctx context.Context, original messagepipeline.Message, out *OutboundMessage) error {
	receipt, err := b.publisher.Publish(ctx, messagepipeline.OutboundRecord{
		Topic: out.Topic,
		Key:   out.Key,
		Value: out.Value,
	})
	if err != nil {
		return &PublishError{Topic: out.Topic, Key: out.Key, Err: err}
	}
	b.forwarded.Add(1)
	b.logger.Info().
		Str("msg_id", original.ID).
		Str("key", out.Key).
		Str("topic", receipt.Topic).
		Int32("partition", receipt.Partition).
		Int64("offset", receipt.Offset).
		Msg("Message forwarded.")
	return nil
}

// Forwarded returns the number of acknowledged publishes.
func (b *Bridge) Forwarded() int64 {
	return b.forwarded.Load()
}

// connectPublisher checks the log broker.
func (b *Bridge) connectPublisher(ctx context.Context) error {
	return b.publisher.Connect(ctx)
}

// start connects the subscriber and starts the worker. ctx outlives the shutdown
// signal so the in-flight publish can complete while draining.
func (b *Bridge) start(ctx context.Context) error {
	return b.service.Start(ctx)
}

// drain stops intake, waits for the in-flight message to get its final outcome,
// then closes the publisher and the dead-letter sink.
func (b *Bridge) drain(ctx context.Context) error {
	var firstErr error
	if err := b.service.Stop(ctx); err != nil {
		b.logger.Error().Err(err).Msg("Pipeline did not drain cleanly.")
		firstErr = err
	}
	if err := b.closeOutputs(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (b *Bridge) closeOutputs(ctx context.Context) error {
	var firstErr error
	if err := b.publisher.Stop(ctx); err != nil {
		b.logger.Error().Err(err).Msg("Publisher did not stop cleanly.")
		firstErr = err
	}
	if b.deadLetter != nil {
		if err := b.deadLetter.Close(ctx); err != nil {
			b.logger.Error().Err(err).Msg("Dead-letter sink did not close cleanly.")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
