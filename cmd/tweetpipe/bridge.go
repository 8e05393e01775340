package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/deadletter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/microservice"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/mqttconverter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetbridge"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward MQTT tweets to Kafka",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		sup := tweetbridge.NewSupervisor(cfg.Bridge, logger)

		subscriber, err := mqttconverter.NewMqttConsumer(cfg.MQTT, logger, 1, mqttconverter.WithConnectionObserver(sup))
		if err != nil {
			return err
		}
		producer, err := messagepipeline.NewKafkaProducer(cfg.KafkaProducer, logger)
		if err != nil {
			return err
		}
		deadLetter, err := deadletter.New(ctx, cfg.DeadLetter, cfg.KafkaProducer, logger)
		if err != nil {
			_ = producer.Stop(context.Background())
			return err
		}
		bridge, err := newBridge(cfg.Bridge, cfg.KafkaProducer.Topic, subscriber, producer, deadLetter, logger)
		if err != nil {
			return err
		}

		health := microservice.NewBaseServer(logger, cfg.HTTPPort, func() (bool, string) {
			state := sup.State()
			return state == tweetbridge.StateReady, state.String()
		})
		if err := health.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = health.Shutdown(shutdownCtx)
		}()

		err = sup.Run(ctx, bridge)
		var connErr *tweetbridge.ConnectionError
		if errors.As(err, &connErr) {
			logger.Error().Err(err).Int("attempts", connErr.Attempts).Msg("Bridge could not reach its brokers, giving up.")
		}
		return err
	},
}

// newBridge builds the bridge and releases the publisher and dead-letter sink
// if it cannot.
func newBridge(
	cfg *tweetbridge.Config,
	topic string,
	subscriber tweetbridge.Subscriber,
	publisher tweetbridge.Publisher,
	deadLetter messagepipeline.DeadLetterSink,
	logger zerolog.Logger,
) (*tweetbridge.Bridge, error) {
	bridge, err := tweetbridge.NewBridge(cfg, topic, subscriber, publisher, deadLetter, logger)
	if err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = publisher.Stop(ctx)
		if deadLetter != nil {
			_ = deadLetter.Close(ctx)
		}
		return nil, err
	}
	return bridge, nil
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}
