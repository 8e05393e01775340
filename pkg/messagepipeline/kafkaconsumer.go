package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// --- Kafka Consumer Implementation ---

// KafkaConsumerConfig holds configuration for a consumer-group based Kafka source.
type KafkaConsumerConfig struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	Group      string   `yaml:"group"`
	ClientID   string   `yaml:"client_id"`
	BufferSize int      `yaml:"buffer_size"`
	// CommitTimeout bounds each offset commit issued from Ack/Nack.
	CommitTimeout time.Duration `yaml:"commit_timeout"`
}

// KafkaConsumerGroup is the env variable naming the consumer group.
const KafkaConsumerGroup = "KAFKA_CONSUMER_GROUP"

// DefaultKafkaConsumerConfig returns the built-in defaults without reading the environment.
func DefaultKafkaConsumerConfig() *KafkaConsumerConfig {
	return &KafkaConsumerConfig{
		Brokers:       []string{"localhost:9092"},
		Topic:         "twitter-tweets",
		Group:         "mysql-consumer-group",
		ClientID:      "tweet-sink",
		BufferSize:    1,
		CommitTimeout: 5 * time.Second,
	}
}

// LoadKafkaConsumerConfigFromEnv returns the defaults overridden by the environment.
func LoadKafkaConsumerConfigFromEnv() *KafkaConsumerConfig {
	cfg := DefaultKafkaConsumerConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields whose environment variables are set.
func (cfg *KafkaConsumerConfig) ApplyEnv() {
	if servers := os.Getenv(KafkaBootstrapServers); servers != "" {
		cfg.Brokers = SplitBrokers(servers)
	}
	if topic := os.Getenv(KafkaTopic); topic != "" {
		cfg.Topic = topic
	}
	if group := os.Getenv(KafkaConsumerGroup); group != "" {
		cfg.Group = group
	}
	if id := os.Getenv(KafkaClientID); id != "" {
		cfg.ClientID = id
	}
}

// KafkaFetchClient is the subset of *kgo.Client used by KafkaConsumer.
type KafkaFetchClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Ping(ctx context.Context) error
	Close()
}

// KafkaConsumer implements MessageConsumer over a Kafka consumer group. Offsets
// are committed per record when the pipeline acks or nacks it.
type KafkaConsumer struct {
	client        KafkaFetchClient
	logger        zerolog.Logger
	outputChan    chan Message
	doneChan      chan struct{}
	commitTimeout time.Duration
	tracker       AckTracker
	cancelPoll    context.CancelFunc
	startOnce     sync.Once
	stopOnce      sync.Once
}

// NewKafkaConsumer creates a group consumer that starts from the earliest offset
// when the group has no committed position.
func NewKafkaConsumer(cfg *KafkaConsumerConfig, logger zerolog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker address is required")
	}
	if cfg.Group == "" {
		return nil, fmt.Errorf("kafka consumer group is required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer client: %w", err)
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("group", cfg.Group).Str("topic", cfg.Topic).Msg("KafkaConsumer initialized.")
	return NewKafkaConsumerWithClient(cfg, client, logger), nil
}

// NewKafkaConsumerWithClient wraps an existing client.
func NewKafkaConsumerWithClient(cfg *KafkaConsumerConfig, client KafkaFetchClient, logger zerolog.Logger) *KafkaConsumer {
	bufferSize := cfg.BufferSize
	if bufferSize < 0 {
		bufferSize = 0
	}
	commitTimeout := cfg.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = 5 * time.Second
	}
	return &KafkaConsumer{
		client:        client,
		logger:        logger.With().Str("component", "KafkaConsumer").Str("group", cfg.Group).Logger(),
		outputChan:    make(chan Message, bufferSize),
		doneChan:      make(chan struct{}),
		commitTimeout: commitTimeout,
	}
}

// Messages returns the channel of consumed records.
func (c *KafkaConsumer) Messages() <-chan Message { return c.outputChan }

// Done is closed once the poll loop has exited.
func (c *KafkaConsumer) Done() <-chan struct{} { return c.doneChan }

// Start verifies connectivity and launches the poll loop.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach kafka: %w", err)
	}
	c.startOnce.Do(func() {
		pollCtx, cancel := context.WithCancel(ctx)
		c.cancelPoll = cancel
		go c.pollLoop(pollCtx)
	})
	c.logger.Info().Msg("Kafka consumption started.")
	return nil
}

func (c *KafkaConsumer) pollLoop(ctx context.Context) {
	defer close(c.doneChan)
	defer close(c.outputChan)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.logger.Info().Msg("Kafka poll loop stopped.")
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("Kafka fetch error.")
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			msg := c.toMessage(record)
			select {
			case c.outputChan <- msg:
			case <-ctx.Done():
				// The record is not committed, so the group redelivers it.
				c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, leaving record uncommitted.")
				return
			}
		}
	}
}

func (c *KafkaConsumer) toMessage(record *kgo.Record) Message {
	commit := func() {
		commitCtx, cancel := context.WithTimeout(context.Background(), c.commitTimeout)
		defer cancel()
		if err := c.client.CommitRecords(commitCtx, record); err != nil {
			c.logger.Error().Err(err).Str("topic", record.Topic).Int32("partition", record.Partition).Int64("offset", record.Offset).Msg("Failed to commit offset.")
		}
	}
	// Offsets are linear: a rejected record is committed as well so the group does not stall on it.
	ack, nack, _ := c.tracker.Track(commit, commit)

	return Message{
		MessageData: MessageData{
			ID:          fmt.Sprintf("%s/%d/%d", record.Topic, record.Partition, record.Offset),
			Payload:     record.Value,
			PublishTime: record.Timestamp,
		},
		Attributes: map[string]string{
			"kafka_topic":     record.Topic,
			"kafka_key":       string(record.Key),
			"kafka_partition": strconv.Itoa(int(record.Partition)),
			"kafka_offset":    strconv.FormatInt(record.Offset, 10),
		},
		Ack:  ack,
		Nack: nack,
	}
}

// Stop ends polling, waits for delivered records to be settled, then closes the client.
func (c *KafkaConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Kafka consumer...")
		if c.cancelPoll != nil {
			c.cancelPoll()
			select {
			case <-c.doneChan:
			case <-ctx.Done():
				err = ctx.Err()
			}
		} else {
			close(c.outputChan)
			close(c.doneChan)
		}
		if waitErr := c.tracker.Wait(ctx); waitErr != nil && err == nil {
			c.logger.Warn().Int("pending", c.tracker.Pending()).Msg("Timeout waiting for records to be settled.")
			err = waitErr
		}
		c.client.Close()
		c.logger.Info().Msg("Kafka consumer stopped.")
	})
	return err
}
