// Package tweetstore writes bridged tweets into a SQL table. MySQL is the
// default target; postgres and sqlite share the same schema.
package tweetstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	_ "modernc.org/sqlite"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweets"
)

// Store inserts tweets through a circuit breaker so a failing database is not
// hammered by every record the consumer pulls.
type Store struct {
	db        *sql.DB
	driver    string
	dialect   dialect
	insertSQL string
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    zerolog.Logger
}

// Open connects to the configured database, retrying the ping with a fixed
// delay, and creates the tweets table if it does not exist.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	policy := messagepipeline.RetryPolicy{
		MaxAttempts: cfg.ConnectAttempts,
		Delay:       messagepipeline.FixedDelay(cfg.ConnectDelay),
	}
	err = policy.Do(ctx, func(ctx context.Context, _ int) error {
		return db.PingContext(ctx)
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Str("driver", cfg.Driver).Msg("Database connection attempt failed.")
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}
	logger.Info().Str("driver", cfg.Driver).Msg("Connected to database.")

	s, err := NewStore(db, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, cfg *Config, logger zerolog.Logger) (*Store, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	timeout := cfg.InsertTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Store{
		db:        db,
		driver:    cfg.Driver,
		dialect:   d,
		insertSQL: d.insertSQL(),
		timeout:   timeout,
		logger:    logger.With().Str("component", "TweetStore").Str("driver", cfg.Driver).Logger(),
	}
	s.breaker = newCircuitBreaker(cfg, s.logger)
	return s, nil
}

func newCircuitBreaker(cfg *Config, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tweet-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the database
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed.")
		},
	})
}

// Migrate creates the tweets table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("failed to create tweets table: %w", err)
	}
	return nil
}

// Insert writes one tweet. Both timestamp columns hold the resolved tweet time.
// It returns gobreaker.ErrOpenState without touching the database while the
// breaker is open.
func (s *Store) Insert(ctx context.Context, t *tweets.Tweet, at time.Time) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		insertCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.db.ExecContext(insertCtx, s.insertSQL,
			t.UserID,
			t.ScreenName,
			t.Text,
			at,
			at,
			t.Location,
			t.Verified,
			t.StatusesCount,
			t.MBTIPersonality,
			t.TotalRetweetCount,
			t.TotalFavoriteCount,
		)
	})
	return err
}

// Count returns the number of stored tweets.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tweets").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tweets: %w", err)
	}
	return n, nil
}

// BreakerState reports the insert circuit breaker state.
func (s *Store) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
