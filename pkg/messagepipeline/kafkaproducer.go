package messagepipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaProducerConfig holds configuration for the Kafka producer.
type KafkaProducerConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
	// RecordRetries bounds how many times the client retries a transient send failure.
	RecordRetries int `yaml:"record_retries"`
	// RetryBackoff is the fixed wait between those retries.
	RetryBackoff          time.Duration `yaml:"retry_backoff"`
	ProduceRequestTimeout time.Duration `yaml:"produce_request_timeout"`
	// PublishTimeout bounds how long Publish waits for the broker acknowledgment.
	PublishTimeout         time.Duration `yaml:"publish_timeout"`
	AllowAutoTopicCreation bool          `yaml:"allow_auto_topic_creation"`
}

// Env constants for Kafka producer settings.
const (
	KafkaBootstrapServers = "KAFKA_BOOTSTRAP_SERVERS"
	KafkaTopic            = "KAFKA_TOPIC"
	KafkaClientID         = "KAFKA_CLIENT_ID"
	KafkaRecordRetries    = "KAFKA_RECORD_RETRIES"
	KafkaRetryBackoff     = "KAFKA_RETRY_BACKOFF"
	KafkaPublishTimeout   = "KAFKA_PUBLISH_TIMEOUT"
)

// DefaultKafkaProducerConfig returns the built-in defaults without reading the environment.
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:                []string{"kafka:29092"},
		Topic:                  "twitter-tweets",
		ClientID:               "mqtt-kafka-bridge",
		RecordRetries:          5,
		RetryBackoff:           100 * time.Millisecond,
		ProduceRequestTimeout:  30 * time.Second,
		PublishTimeout:         10 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// LoadKafkaProducerConfigFromEnv returns the defaults overridden by the environment.
func LoadKafkaProducerConfigFromEnv() *KafkaProducerConfig {
	cfg := DefaultKafkaProducerConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields whose environment variables are set. Unparseable
// values are ignored and the current value kept.
func (cfg *KafkaProducerConfig) ApplyEnv() {
	if servers := os.Getenv(KafkaBootstrapServers); servers != "" {
		cfg.Brokers = SplitBrokers(servers)
	}
	if topic := os.Getenv(KafkaTopic); topic != "" {
		cfg.Topic = topic
	}
	if id := os.Getenv(KafkaClientID); id != "" {
		cfg.ClientID = id
	}
	if r := os.Getenv(KafkaRecordRetries); r != "" {
		if val, err := strconv.Atoi(r); err == nil {
			cfg.RecordRetries = val
		}
	}
	if b := os.Getenv(KafkaRetryBackoff); b != "" {
		if val, err := time.ParseDuration(b); err == nil {
			cfg.RetryBackoff = val
		}
	}
	if t := os.Getenv(KafkaPublishTimeout); t != "" {
		if val, err := time.ParseDuration(t); err == nil {
			cfg.PublishTimeout = val
		}
	}
}

// SplitBrokers parses a comma-separated broker list.
func SplitBrokers(servers string) []string {
	var brokers []string
	for _, b := range strings.Split(servers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaProduceClient is the subset of *kgo.Client used by KafkaProducer.
type KafkaProduceClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Flush(ctx context.Context) error
	Close()
}

// KafkaProducer publishes keyed records to Kafka and waits for each acknowledgment.
type KafkaProducer struct {
	client         KafkaProduceClient
	topic          string
	publishTimeout time.Duration
	logger         zerolog.Logger
	produceCount   atomic.Int64
	errorCount     atomic.Int64
}

// NewKafkaProducer creates a franz-go backed producer. The client connects lazily;
// call Connect to verify the cluster is reachable.
func NewKafkaProducer(cfg *KafkaProducerConfig, logger zerolog.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker address is required")
	}
	client, err := kgo.NewClient(producerOpts(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("KafkaProducer initialized.")
	return NewKafkaProducerWithClient(cfg, client, logger), nil
}

// producerOpts maps the config onto franz-go options. The record delivery
// timeout matches the publish timeout so a record already sent to a broker is
// also failed once the publish deadline passes.
func producerOpts(cfg *KafkaProducerConfig) []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.RecordRetries),
		kgo.RetryBackoffFn(func(int) time.Duration { return cfg.RetryBackoff }),
		kgo.RecordDeliveryTimeout(publishTimeout(cfg)),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.ProduceRequestTimeout > 0 {
		opts = append(opts, kgo.ProduceRequestTimeout(cfg.ProduceRequestTimeout))
	}
	if cfg.AllowAutoTopicCreation {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}
	return opts
}

func publishTimeout(cfg *KafkaProducerConfig) time.Duration {
	if cfg.PublishTimeout <= 0 {
		return 10 * time.Second
	}
	return cfg.PublishTimeout
}

// NewKafkaProducerWithClient wraps an existing client.
func NewKafkaProducerWithClient(cfg *KafkaProducerConfig, client KafkaProduceClient, logger zerolog.Logger) *KafkaProducer {
	return &KafkaProducer{
		client:         client,
		topic:          cfg.Topic,
		publishTimeout: publishTimeout(cfg),
		logger:         logger.With().Str("component", "KafkaProducer").Str("topic", cfg.Topic).Logger(),
	}
}

// Topic returns the default destination topic.
func (p *KafkaProducer) Topic() string {
	return p.topic
}

// Connect checks that at least one broker answers.
func (p *KafkaProducer) Connect(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach kafka: %w", err)
	}
	p.logger.Info().Msg("Kafka cluster reachable.")
	return nil
}

// Publish sends one record and blocks until the broker acknowledges it, the
// client's retries are exhausted, or the publish timeout expires.
func (p *KafkaProducer) Publish(ctx context.Context, rec OutboundRecord) (DeliveryReceipt, error) {
	topic := rec.Topic
	if topic == "" {
		topic = p.topic
	}
	record := &kgo.Record{
		Topic: topic,
		Value: rec.Value,
	}
	if rec.Key != "" {
		record.Key = []byte(rec.Key)
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	produced, err := p.client.ProduceSync(produceCtx, record).First()
	if err == nil && produced == nil {
		err = fmt.Errorf("no produce result returned")
	}
	if err != nil {
		p.errorCount.Add(1)
		return DeliveryReceipt{}, fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	p.produceCount.Add(1)
	return DeliveryReceipt{
		Topic:     produced.Topic,
		Partition: produced.Partition,
		Offset:    produced.Offset,
		Timestamp: produced.Timestamp,
	}, nil
}

// Stats returns the number of acknowledged and failed publishes.
func (p *KafkaProducer) Stats() (produced, failed int64) {
	return p.produceCount.Load(), p.errorCount.Load()
}

// Stop flushes buffered records, respecting ctx, then closes the client.
func (p *KafkaProducer) Stop(ctx context.Context) error {
	p.logger.Info().Msg("Stopping Kafka producer...")
	err := p.client.Flush(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Timeout flushing Kafka producer.")
	}
	p.client.Close()
	produced, failed := p.Stats()
	p.logger.Info().Int64("produced", produced).Int64("errors", failed).Msg("Kafka producer stopped.")
	return err
}
