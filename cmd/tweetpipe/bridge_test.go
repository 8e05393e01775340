package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetbridge"
)

type stubPublisher struct{ stopped bool }

func (p *stubPublisher) Connect(context.Context) error { return nil }
func (p *stubPublisher) Publish(context.Context, messagepipeline.OutboundRecord) (messagepipeline.DeliveryReceipt, error) {
	return messagepipeline.DeliveryReceipt{}, nil
}
func (p *stubPublisher) Stop(context.Context) error { p.stopped = true; return nil }

type stubDeadLetter struct{ closed bool }

func (s *stubDeadLetter) Write(context.Context, messagepipeline.DeadLetter) error { return nil }
func (s *stubDeadLetter) Close(context.Context) error                             { s.closed = true; return nil }

func TestNewBridge_ReleasesOutputsOnError(t *testing.T) {
	publisher, deadLetter := &stubPublisher{}, &stubDeadLetter{}

	// A nil subscriber makes construction fail after both outputs exist.
	_, err := newBridge(tweetbridge.DefaultConfig(), "twitter-tweets", nil, publisher, deadLetter, zerolog.Nop())
	require.Error(t, err)

	assert.True(t, publisher.stopped)
	assert.True(t, deadLetter.closed)
}
