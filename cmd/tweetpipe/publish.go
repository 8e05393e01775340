package main

import (
	"github.com/spf13/cobra"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/mqttconverter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetgen"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish synthetic tweets to MQTT",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		dataset, err := tweetgen.LoadDataset(cfg.Generator.TweetsFile, cfg.Generator.UsersFile, cfg.Generator.MBTIFile)
		if err != nil {
			logger.Error().Err(err).Msg("Error loading data files.")
			return err
		}
		logger.Info().Int("users", len(dataset.Users)).Msg("Loaded tweet dataset.")

		mqttCfg := *cfg.MQTT
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientIDPrefix = "tweet-gen-"
		}
		publisher, err := mqttconverter.NewMqttPublisher(&mqttCfg, logger)
		if err != nil {
			return err
		}
		if err := publisher.Connect(ctx); err != nil {
			return err
		}
		defer publisher.Close()

		gen, err := tweetgen.NewGenerator(cfg.Generator, dataset, publisher, logger)
		if err != nil {
			return err
		}
		return gen.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
