package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// PubsubConfig holds the configuration for the Google Pub/Sub sink.
type PubsubConfig struct {
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
	// EmulatorHost, when set, connects without credentials to a local emulator.
	EmulatorHost       string        `yaml:"emulator_host"`
	TopicExistsTimeout time.Duration `yaml:"topic_exists_timeout"`
	PublishTimeout     time.Duration `yaml:"publish_timeout"`
}

// PubsubSink publishes dead letters to a Pub/Sub topic and waits for the server ID,
// so a letter is only reported written once Pub/Sub holds it.
type PubsubSink struct {
	client         *pubsub.Client
	ownsClient     bool
	topic          *pubsub.Topic
	publishTimeout time.Duration
	logger         zerolog.Logger
}

// ClientOptions returns the options for cfg, pointing at the emulator when one is configured.
func (cfg *PubsubConfig) ClientOptions() []option.ClientOption {
	if cfg.EmulatorHost == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(cfg.EmulatorHost),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

// NewPubsubSink creates its own client from cfg and closes it on Close.
func NewPubsubSink(ctx context.Context, cfg *PubsubConfig, logger zerolog.Logger) (*PubsubSink, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	sink, err := NewPubsubSinkWithClient(ctx, cfg, client, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	sink.ownsClient = true
	return sink, nil
}

// NewPubsubSinkWithClient uses an existing client. It verifies the topic exists.
func NewPubsubSinkWithClient(ctx context.Context, cfg *PubsubConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubSink, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub dead-letter topic is required")
	}
	existsTimeout := cfg.TopicExistsTimeout
	if existsTimeout <= 0 {
		existsTimeout = 15 * time.Second
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 10 * time.Second
	}

	topic := client.Topic(cfg.TopicID)
	existsCtx, cancel := context.WithTimeout(ctx, existsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	return &PubsubSink{
		client:         client,
		topic:          topic,
		publishTimeout: publishTimeout,
		logger:         logger.With().Str("component", "PubsubDeadLetterSink").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

func (s *PubsubSink) Write(ctx context.Context, letter messagepipeline.DeadLetter) error {
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	attributes := map[string]string{
		"stage":       letter.Stage,
		"error_class": letter.ErrorClass,
		"msg_id":      letter.Message.ID,
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	result := s.topic.Publish(publishCtx, &pubsub.Message{Data: data, Attributes: attributes})
	serverID, err := result.Get(publishCtx)
	if err != nil {
		return fmt.Errorf("failed to publish dead letter: %w", err)
	}
	s.logger.Debug().Str("msg_id", letter.Message.ID).Str("pubsub_msg_id", serverID).Msg("Dead letter stored.")
	return nil
}

// Close flushes pending messages for the topic, respecting the context's timeout.
func (s *PubsubSink) Close(ctx context.Context) error {
	// topic.Stop() is blocking, so we wrap it to respect the context timeout.
	stopDone := make(chan struct{})
	go func() {
		s.topic.Stop()
		close(stopDone)
	}()

	select {
	case <-stopDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
