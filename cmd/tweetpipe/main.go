// Command tweetpipe runs the pieces of the tweet pipeline: the MQTT to Kafka
// bridge, the Kafka to SQL sink and the synthetic tweet publisher.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tweetpipe",
	Short: "Real-time tweet pipeline: MQTT -> Kafka -> SQL",
	Long: `tweetpipe moves synthetic tweets through the pipeline:
- publish: generates tweets and publishes them to MQTT
- bridge:  forwards MQTT messages to Kafka, keyed by user_id
- consume: stores Kafka records in a SQL tweets table`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file; environment variables override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
}

// setup loads the configuration and the root logger shared by every subcommand.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
