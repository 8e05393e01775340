package tweetstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweets"
)

// InsertError reports a tweet that could not be stored after retries.
type InsertError struct {
	MessageID string
	Err       error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert tweet from message %s: %v", e.MessageID, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// Class implements the error classification used in failure logs.
func (e *InsertError) Class() string { return "InsertError" }

// Inserter is the write side of a Store.
type Inserter interface {
	Insert(ctx context.Context, t *tweets.Tweet, at time.Time) error
}

// Sink turns consumed Kafka records into stored tweets.
type Sink struct {
	store    Inserter
	policy   messagepipeline.RetryPolicy
	now      func() time.Time
	logger   zerolog.Logger
	inserted atomic.Int64
}

// NewSink builds a sink whose inserts are retried per cfg. Retries stop early
// while the circuit breaker is open.
func NewSink(store Inserter, cfg *Config, logger zerolog.Logger) *Sink {
	return &Sink{
		store: store,
		policy: messagepipeline.RetryPolicy{
			MaxAttempts: cfg.InsertAttempts,
			Delay:       messagepipeline.ExponentialDelay(cfg.InsertBackoff, 5*time.Second),
			ShouldRetry: func(err error) bool {
				return !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests)
			},
		},
		now:    time.Now,
		logger: logger.With().Str("component", "TweetSink").Logger(),
	}
}

// Transformer decodes a record value into a Tweet.
func (s *Sink) Transformer() messagepipeline.MessageTransformer[tweets.Tweet] {
	return func(_ context.Context, msg *messagepipeline.Message) (*tweets.Tweet, bool, error) {
		t, err := tweets.Decode(msg.Payload)
		if err != nil {
			return nil, false, err
		}
		return t, false, nil
	}
}

// Processor inserts a decoded tweet.
func (s *Sink) Processor() messagepipeline.StreamProcessor[tweets.Tweet] {
	return s.process
}

func (s *Sink) process(ctx context.Context, original messagepipeline.Message, t *tweets.Tweet) error {
	at := t.ResolveTime(s.now)
	err := s.policy.Do(ctx, func(ctx context.Context, _ int) error {
		return s.store.Insert(ctx, t, at)
	}, func(attempt int, err error, wait time.Duration) {
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Str("msg_id", original.ID).Msg("Tweet insert failed, retrying.")
	})
	if err != nil {
		return &InsertError{MessageID: original.ID, Err: err}
	}
	s.inserted.Add(1)
	userID := "null"
	if t.UserID != nil {
		userID = fmt.Sprint(*t.UserID)
	}
	s.logger.Info().Str("screen_name", t.ScreenName).Str("user_id", userID).Str("msg_id", original.ID).Msg("Inserted tweet.")
	return nil
}

// Inserted returns the number of stored tweets since start.
func (s *Sink) Inserted() int64 {
	return s.inserted.Load()
}

// NewService assembles the single-worker pipeline that feeds the sink.
func (s *Sink) NewService(consumer messagepipeline.MessageConsumer, deadLetter messagepipeline.DeadLetterSink) (*messagepipeline.StreamingService[tweets.Tweet], error) {
	return messagepipeline.NewStreamingService[tweets.Tweet](
		messagepipeline.StreamingServiceConfig{NumWorkers: 1, DeadLetter: deadLetter},
		consumer,
		s.Transformer(),
		s.Processor(),
		s.logger,
	)
}
