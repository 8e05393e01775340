package tweetgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweets"
)

// Config holds the generator inputs and pacing.
type Config struct {
	TweetsFile string        `yaml:"tweets_file"`
	UsersFile  string        `yaml:"users_file"`
	MBTIFile   string        `yaml:"mbti_file"`
	Interval   time.Duration `yaml:"interval"`
	// ErrorBackoff is the pause after a failed publish.
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

// Env constants for the generator.
const (
	GeneratorTweetsFile = "GENERATOR_TWEETS_FILE"
	GeneratorUsersFile  = "GENERATOR_USERS_FILE"
	GeneratorMBTIFile   = "GENERATOR_MBTI_FILE"
	GeneratorInterval   = "GENERATOR_INTERVAL"
)

// DefaultConfig returns the built-in defaults without reading the environment.
func DefaultConfig() *Config {
	return &Config{
		TweetsFile:   "/app/data/tweets1.json",
		UsersFile:    "/app/data/users1.json",
		MBTIFile:     "/app/data/mbti_labels.csv",
		Interval:     2 * time.Second,
		ErrorBackoff: 5 * time.Second,
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
	if v := os.Getenv(GeneratorTweetsFile); v != "" {
		cfg.TweetsFile = v
	}
	if v := os.Getenv(GeneratorUsersFile); v != "" {
		cfg.UsersFile = v
	}
	if v := os.Getenv(GeneratorMBTIFile); v != "" {
		cfg.MBTIFile = v
	}
	if v := os.Getenv(GeneratorInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
}

// Publisher sends one payload to the tweet topic.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Generator picks a random user and tweet on every tick and publishes it.
type Generator struct {
	dataset  *Dataset
	pub      Publisher
	interval time.Duration
	backoff  time.Duration
	rng      *rand.Rand
	now      func() time.Time
	logger   zerolog.Logger
}

// NewGenerator creates a generator over a loaded dataset.
func NewGenerator(cfg *Config, dataset *Dataset, pub Publisher, logger zerolog.Logger) (*Generator, error) {
	if len(dataset.Users) == 0 {
		return nil, errors.New("tweet dataset is empty")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	seed := uint64(time.Now().UnixNano())
	return &Generator{
		dataset:  dataset,
		pub:      pub,
		interval: interval,
		backoff:  cfg.ErrorBackoff,
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
		now:      time.Now,
		logger:   logger.With().Str("component", "TweetGenerator").Logger(),
	}, nil
}

// CleanText flattens newlines, strips double quotes and backslashes, and
// makes sure the text ends with a full stop.
func CleanText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.NewReplacer("\n", " ", `"`, "", `\`, "").Replace(text)
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}

// Build assembles the wire tweet for one user and text.
func (g *Generator) Build(user UserTweets, text string) *tweets.Tweet {
	now := g.now().UTC()
	t := &tweets.Tweet{
		UserID:          tweets.Int64(user.ID),
		ScreenName:      user.ScreenName,
		Text:            CleanText(text),
		Timestamp:       now.Format(tweets.TimestampLayout),
		ISOTimestamp:    now.Format(tweets.ISOTimestampLayout),
		MBTIPersonality: g.dataset.Personality(user.ID),
	}
	if p, ok := g.dataset.Profile(user.ScreenName); ok {
		t.Location = p.Location
		t.Verified = p.Verified
		t.StatusesCount = p.StatusesCount
		t.TotalRetweetCount = p.TotalRetweetCount
		t.TotalFavoriteCount = p.TotalFavoriteCount
	}
	return t
}

// Next samples one tweet. It returns false when the chosen user has no tweets.
func (g *Generator) Next() (*tweets.Tweet, bool) {
	user := g.dataset.Users[g.rng.IntN(len(g.dataset.Users))]
	if len(user.Tweets) == 0 {
		return nil, false
	}
	return g.Build(user, user.Tweets[g.rng.IntN(len(user.Tweets))]), true
}

// PublishOne samples and publishes a single tweet.
func (g *Generator) PublishOne(ctx context.Context) error {
	t, ok := g.Next()
	if !ok {
		return nil
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tweet: %w", err)
	}
	if err := g.pub.Publish(ctx, payload); err != nil {
		return err
	}
	g.logger.Info().Str("screen_name", t.ScreenName).Int64("user_id", *t.UserID).Msg("Published tweet.")
	return nil
}

// Run publishes until ctx is done.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info().Dur("interval", g.interval).Int("users", len(g.dataset.Users)).Msg("Starting tweet publishing...")
	for {
		wait := g.interval
		if err := g.PublishOne(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			g.logger.Error().Err(err).Msg("Error in publish loop.")
			wait = g.backoff
		}
		select {
		case <-ctx.Done():
			g.logger.Info().Msg("Stopping tweet publisher.")
			return nil
		case <-time.After(wait):
		}
	}
}
