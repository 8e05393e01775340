package deadletter

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// Sink kinds.
const (
	SinkLog    = "log"
	SinkKafka  = "kafka"
	SinkRedis  = "redis"
	SinkPubsub = "pubsub"
)

// Config selects and configures the dead-letter sink.
type Config struct {
	Sink string `yaml:"sink"`
	// KafkaTopic defaults to the bridge topic with a "-dlq" suffix.
	KafkaTopic string       `yaml:"kafka_topic"`
	Redis      RedisConfig  `yaml:"redis"`
	Pubsub     PubsubConfig `yaml:"pubsub"`
}

// Env constants for dead-letter settings.
const (
	DeadLetterSink          = "DEAD_LETTER_SINK"
	DeadLetterKafkaTopic    = "DEAD_LETTER_KAFKA_TOPIC"
	DeadLetterRedisAddr     = "DEAD_LETTER_REDIS_ADDR"
	DeadLetterRedisPassword = "DEAD_LETTER_REDIS_PASSWORD"
	DeadLetterRedisKey      = "DEAD_LETTER_REDIS_KEY"
	DeadLetterRedisMaxLen   = "DEAD_LETTER_REDIS_MAXLEN"
	DeadLetterPubsubProject = "DEAD_LETTER_PUBSUB_PROJECT"
	DeadLetterPubsubTopic   = "DEAD_LETTER_PUBSUB_TOPIC"
	PubsubEmulatorHost      = "PUBSUB_EMULATOR_HOST"
)

// DefaultConfig returns the log-and-drop sink with Redis defaults filled in.
func DefaultConfig() *Config {
	return &Config{
		Sink: SinkLog,
		Redis: RedisConfig{
			Addr:   "redis:6379",
			Key:    "tweets:deadletter",
			MaxLen: 10000,
		},
		Pubsub: PubsubConfig{
			TopicExistsTimeout: 15 * time.Second,
			PublishTimeout:     10 * time.Second,
		},
	}
}

// LoadConfigFromEnv returns the defaults overridden by the environment.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields whose environment variables are set.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(DeadLetterSink); v != "" {
		cfg.Sink = v
	}
	if v := os.Getenv(DeadLetterKafkaTopic); v != "" {
		cfg.KafkaTopic = v
	}
	if v := os.Getenv(DeadLetterRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(DeadLetterRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv(DeadLetterRedisKey); v != "" {
		cfg.Redis.Key = v
	}
	if v := os.Getenv(DeadLetterRedisMaxLen); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Redis.MaxLen = n
		}
	}
	if v := os.Getenv(DeadLetterPubsubProject); v != "" {
		cfg.Pubsub.ProjectID = v
	}
	if v := os.Getenv(DeadLetterPubsubTopic); v != "" {
		cfg.Pubsub.TopicID = v
	}
	if v := os.Getenv(PubsubEmulatorHost); v != "" {
		cfg.Pubsub.EmulatorHost = v
	}
}

// Validate checks the settings the selected sink needs.
func (cfg *Config) Validate() error {
	switch cfg.Sink {
	case SinkLog, SinkKafka:
		return nil
	case SinkRedis:
		if cfg.Redis.Addr == "" || cfg.Redis.Key == "" {
			return fmt.Errorf("redis dead-letter sink needs %s and %s", DeadLetterRedisAddr, DeadLetterRedisKey)
		}
		return nil
	case SinkPubsub:
		if cfg.Pubsub.ProjectID == "" || cfg.Pubsub.TopicID == "" {
			return fmt.Errorf("pubsub dead-letter sink needs %s and %s", DeadLetterPubsubProject, DeadLetterPubsubTopic)
		}
		return nil
	default:
		return fmt.Errorf("unknown dead-letter sink %q", cfg.Sink)
	}
}

// New builds the configured sink. The Kafka sink gets its own producer derived
// from kafkaCfg so closing it never affects the bridge's producer.
func New(ctx context.Context, cfg *Config, kafkaCfg *messagepipeline.KafkaProducerConfig, logger zerolog.Logger) (messagepipeline.DeadLetterSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Sink {
	case SinkKafka:
		dlqCfg := *kafkaCfg
		dlqCfg.Topic = cfg.KafkaTopic
		if dlqCfg.Topic == "" {
			dlqCfg.Topic = kafkaCfg.Topic + "-dlq"
		}
		dlqCfg.ClientID = kafkaCfg.ClientID + "-dlq"
		producer, err := messagepipeline.NewKafkaProducer(&dlqCfg, logger)
		if err != nil {
			return nil, err
		}
		return NewKafkaSink(producer, dlqCfg.Topic, logger)
	case SinkRedis:
		return NewRedisSink(ctx, &cfg.Redis, logger)
	case SinkPubsub:
		return NewPubsubSink(ctx, &cfg.Pubsub, logger)
	default:
		return NewLogSink(logger), nil
	}
}
