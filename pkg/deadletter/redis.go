package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// RedisConfig holds the configuration for the Redis list sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Key is the list the letters are appended to.
	Key string `yaml:"key"`
	// MaxLen caps the list; the oldest letters are trimmed first. Zero disables trimming.
	MaxLen int64 `yaml:"max_len"`
}

// RedisListClient is the subset of *redis.Client used by RedisSink.
type RedisListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisSink appends dead letters as JSON to a capped Redis list.
type RedisSink struct {
	client RedisListClient
	key    string
	maxLen int64
	logger zerolog.Logger
}

// NewRedisSink connects to Redis and pings it before returning.
func NewRedisSink(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	sink, err := NewRedisSinkWithClient(ctx, rdb, cfg, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")
	return sink, nil
}

// NewRedisSinkWithClient wraps an existing client.
func NewRedisSinkWithClient(ctx context.Context, client RedisListClient, cfg *RedisConfig, logger zerolog.Logger) (*RedisSink, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis dead-letter key is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSink{
		client: client,
		key:    cfg.Key,
		maxLen: cfg.MaxLen,
		logger: logger.With().Str("component", "RedisDeadLetterSink").Str("key", cfg.Key).Logger(),
	}, nil
}

func (s *RedisSink) Write(ctx context.Context, letter messagepipeline.DeadLetter) error {
	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	length, err := s.client.RPush(ctx, s.key, value).Result()
	if err != nil {
		return fmt.Errorf("failed to push dead letter to redis: %w", err)
	}
	if s.maxLen > 0 && length > s.maxLen {
		if err := s.client.LTrim(ctx, s.key, -s.maxLen, -1).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to trim dead-letter list.")
		}
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisSink) Close(_ context.Context) error {
	s.logger.Info().Msg("Closing Redis client connection...")
	return s.client.Close()
}
