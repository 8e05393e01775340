// Package config assembles the settings of every pipeline component.
// Values come from the built-in defaults, then an optional YAML file, then
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/deadletter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/mqttconverter"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetbridge"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetgen"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetstore"
)

// Env constants for process-wide settings.
const (
	HTTPPort  = "HTTP_PORT"
	LogLevel  = "LOG_LEVEL"
	LogFormat = "LOG_FORMAT"
)

// Config is the full configuration of the tweetpipe binary.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	HTTPPort  string `yaml:"http_port"`

	MQTT          *mqttconverter.MQTTClientConfig      `yaml:"mqtt"`
	KafkaProducer *messagepipeline.KafkaProducerConfig `yaml:"kafka_producer"`
	KafkaConsumer *messagepipeline.KafkaConsumerConfig `yaml:"kafka_consumer"`
	Bridge        *tweetbridge.Config                  `yaml:"bridge"`
	DeadLetter    *deadletter.Config                   `yaml:"dead_letter"`
	Store         *tweetstore.Config                   `yaml:"store"`
	Generator     *tweetgen.Config                     `yaml:"generator"`
}

// Default returns the built-in defaults of every component.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "json",
		HTTPPort:      ":8080",
		MQTT:          mqttconverter.DefaultMQTTClientConfig(),
		KafkaProducer: messagepipeline.DefaultKafkaProducerConfig(),
		KafkaConsumer: messagepipeline.DefaultKafkaConsumerConfig(),
		Bridge:        tweetbridge.DefaultConfig(),
		DeadLetter:    deadletter.DefaultConfig(),
		Store:         tweetstore.DefaultConfig(),
		Generator:     tweetgen.DefaultConfig(),
	}
}

// Load builds the configuration. path may be empty, in which case no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides every section from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(LogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(LogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(HTTPPort); v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		c.HTTPPort = v
	}
	c.MQTT.ApplyEnv()
	c.KafkaProducer.ApplyEnv()
	c.KafkaConsumer.ApplyEnv()
	c.Bridge.ApplyEnv()
	c.DeadLetter.ApplyEnv()
	c.Store.ApplyEnv()
	c.Generator.ApplyEnv()
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt: topic is required"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt: qos %d is out of range (0..2)", c.MQTT.QoS))
	}
	if c.MQTT.BrokerURL == "" && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		errs = append(errs, fmt.Errorf("mqtt: port %d is out of range (1..65535)", c.MQTT.Port))
	}
	if len(c.KafkaProducer.Brokers) == 0 {
		errs = append(errs, errors.New("kafka_producer: at least one broker is required"))
	}
	if c.KafkaProducer.Topic == "" {
		errs = append(errs, errors.New("kafka_producer: topic is required"))
	}
	if c.KafkaConsumer.Group == "" {
		errs = append(errs, errors.New("kafka_consumer: group is required"))
	}
	if c.Bridge.StartupAttempts < 1 {
		errs = append(errs, fmt.Errorf("bridge: startup_attempts %d must be >= 1", c.Bridge.StartupAttempts))
	}
	if c.Bridge.MaxPayloadBytes < 0 {
		errs = append(errs, fmt.Errorf("bridge: max_payload_bytes %d must be >= 0", c.Bridge.MaxPayloadBytes))
	}
	if err := c.DeadLetter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dead_letter: %w", err))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format %q must be json or console", c.LogFormat))
	}
	return errors.Join(errs...)
}
