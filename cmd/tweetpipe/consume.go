package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/deadletter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/microservice"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetstore"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Store Kafka tweets in the SQL database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		var ready atomic.Bool
		health := microservice.NewBaseServer(logger, cfg.HTTPPort, func() (bool, string) {
			if ready.Load() {
				return true, "Ready"
			}
			return false, "Connecting"
		})
		if err := health.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = health.Shutdown(shutdownCtx)
		}()

		store, err := tweetstore.Open(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		consumer, err := messagepipeline.NewKafkaConsumer(cfg.KafkaConsumer, logger)
		if err != nil {
			return err
		}
		deadLetter, err := deadletter.New(ctx, cfg.DeadLetter, cfg.KafkaProducer, logger)
		if err != nil {
			_ = consumer.Stop(context.Background())
			return err
		}
		sink := tweetstore.NewSink(store, cfg.Store, logger)
		service, err := sink.NewService(consumer, deadLetter)
		if err != nil {
			return err
		}

		// Workers outlive the signal so the record being inserted is finished.
		runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelRun()
		if err := service.Start(runCtx); err != nil {
			return err
		}
		ready.Store(true)
		logger.Info().Str("topic", cfg.KafkaConsumer.Topic).Str("group", cfg.KafkaConsumer.Group).Msg("Tweet sink running.")

		select {
		case <-ctx.Done():
		case <-consumer.Done():
			logger.Warn().Msg("Kafka consumer stopped unexpectedly.")
		}
		ready.Store(false)

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Bridge.DrainTimeout)
		defer cancel()
		stopErr := service.Stop(drainCtx)
		if err := deadLetter.Close(drainCtx); err != nil {
			logger.Error().Err(err).Msg("Dead-letter sink did not close cleanly.")
		}
		logger.Info().Int64("inserted", sink.Inserted()).Msg("Tweet sink stopped.")
		return stopErr
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
