package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxLoggedPayload bounds how much of a failed payload is written to the log.
const maxLoggedPayload = 256

// StreamingService orchestrates a pipeline that consumes messages, transforms them
// individually, and immediately sends them to a streaming processor function.
// With a single worker, messages are processed strictly in arrival order.
type StreamingService[T any] struct {
	numWorkers  int
	consumer    MessageConsumer
	transformer MessageTransformer[T]
	processor   StreamProcessor[T]
	deadLetter  DeadLetterSink
	logger      zerolog.Logger
	wg          sync.WaitGroup
}

// StreamingServiceConfig holds configuration for a StreamingService.
type StreamingServiceConfig struct {
	NumWorkers int
	// DeadLetter receives every message that fails transformation or processing.
	// Optional; failures are only logged when nil.
	DeadLetter DeadLetterSink
}

// NewStreamingService creates a new StreamingService.
func NewStreamingService[T any](
	cfg StreamingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor StreamProcessor[T],
	logger zerolog.Logger,
) (*StreamingService[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if transformer == nil {
		return nil, fmt.Errorf("transformer cannot be nil")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	return &StreamingService[T]{
		numWorkers:  cfg.NumWorkers,
		consumer:    consumer,
		transformer: transformer,
		processor:   processor,
		deadLetter:  cfg.DeadLetter,
		logger:      logger.With().Str("service", "StreamingService").Logger(),
	}, nil
}

// Start begins the service operation. It starts the consumer and then spawns
// the workers. ctx governs the workers and the processor calls; cancel it only
// after Stop has drained in-flight messages.
func (s *StreamingService[T]) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting streaming service...")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}
	s.logger.Info().Msg("Message consumer started.")

	s.StartWorkers(ctx)
	s.logger.Info().Msg("Streaming service started successfully.")
	return nil
}

// StartWorkers spawns the processing workers against an already started consumer.
func (s *StreamingService[T]) StartWorkers(ctx context.Context) {
	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting processing workers...")
	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}
}

// Stop gracefully shuts down the entire service in the correct order: the consumer
// stops accepting messages, then workers finish whatever is already buffered.
func (s *StreamingService[T]) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping streaming service...")

	// Stop the consumer first to prevent new messages from arriving.
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	// Wait for all workers to finish processing in-flight messages.
	workerDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
		s.logger.Info().Msg("All processing workers completed gracefully.")
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for processing workers to finish.")
		return ctx.Err()
	}

	s.logger.Info().Msg("Streaming service stopped.")
	return nil
}

// worker is the main processing loop for each worker. It exits when the consumer
// closes its channel, so buffered messages are still processed during shutdown.
func (s *StreamingService[T]) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	s.logger.Debug().Int("worker_id", workerID).Msg("Processing worker started.")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Int("worker_id", workerID).Msg("Processing worker shutting down due to context cancellation.")
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				s.logger.Info().Int("worker_id", workerID).Msg("Consumer channel closed, worker exiting.")
				return
			}
			s.processConsumedMessage(ctx, msg, workerID)
		}
	}
}

// processConsumedMessage contains the core logic for transforming and processing a single message.
func (s *StreamingService[T]) processConsumedMessage(ctx context.Context, msg Message, workerID int) {
	s.logger.Debug().Int("worker_id", workerID).Str("msg_id", msg.ID).Msg("Transforming message.")

	transformedPayload, skip, err := s.transformer(ctx, &msg)
	if err != nil {
		s.fail(ctx, msg, StageTransform, err)
		return
	}

	if skip {
		s.logger.Debug().Str("msg_id", msg.ID).Msg("Transformer signaled to skip message, Acking.")
		ack(msg)
		return
	}

	if err := s.processor(ctx, msg, transformedPayload); err != nil {
		s.fail(ctx, msg, StageProcess, err)
		return
	}

	s.logger.Debug().Str("msg_id", msg.ID).Msg("Message processed successfully, Acking.")
	ack(msg)
}

// fail logs a failed message, hands it to the dead-letter sink and Nacks it.
func (s *StreamingService[T]) fail(ctx context.Context, msg Message, stage string, err error) {
	class := ErrorClass(err)
	s.logger.Error().
		Err(err).
		Str("stage", stage).
		Str("error_class", class).
		Str("msg_id", msg.ID).
		Str("payload", TruncatePayload(msg.Payload, maxLoggedPayload)).
		Msg("Message failed, Nacking.")

	if s.deadLetter != nil {
		letter := DeadLetter{
			ID:         uuid.NewString(),
			Stage:      stage,
			ErrorClass: class,
			Error:      err.Error(),
			Message:    msg.MessageData,
			Attributes: msg.Attributes,
			FailedAt:   time.Now().UTC(),
		}
		if dlErr := s.deadLetter.Write(ctx, letter); dlErr != nil {
			s.logger.Error().Err(dlErr).Str("msg_id", msg.ID).Msg("Failed to write dead letter.")
		}
	}
	nack(msg)
}

func ack(msg Message) {
	if msg.Ack != nil {
		msg.Ack()
	}
}

func nack(msg Message) {
	if msg.Nack != nil {
		msg.Nack()
	}
}

// ErrorClass names the kind of failure for logs and dead letters. Errors that
// implement `Class() string` anywhere in their chain report that class.
func ErrorClass(err error) string {
	var classified interface{ Class() string }
	if errors.As(err, &classified) {
		return classified.Class()
	}
	return "Error"
}

// TruncatePayload renders at most limit bytes of a payload for logging.
func TruncatePayload(payload []byte, limit int) string {
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "...(truncated)"
}
