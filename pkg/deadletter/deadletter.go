// Package deadletter provides the sinks that receive messages the bridge could
// not forward. The default sink only logs, which keeps the original
// log-and-drop behaviour; the others keep a durable copy.
package deadletter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// maxLoggedPayload bounds the payload text written by LogSink.
const maxLoggedPayload = 256

// LogSink writes each dead letter to the log and drops it.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "LogDeadLetterSink").Logger()}
}

// Write logs the letter. It never fails.
func (s *LogSink) Write(_ context.Context, letter messagepipeline.DeadLetter) error {
	s.logger.Warn().
		Str("dead_letter_id", letter.ID).
		Str("msg_id", letter.Message.ID).
		Str("stage", letter.Stage).
		Str("error_class", letter.ErrorClass).
		Str("error", letter.Error).
		Str("payload", messagepipeline.TruncatePayload(letter.Message.Payload, maxLoggedPayload)).
		Msg("Message dropped.")
	return nil
}

func (s *LogSink) Close(_ context.Context) error { return nil }
