package mqttconverter

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MqttPublisher writes payloads to the configured topic. It backs the tweet
// generator and the integration tests.
type MqttPublisher struct {
	client mqtt.Client
	cfg    *MQTTClientConfig
	logger zerolog.Logger
}

// NewMqttPublisher creates a publisher. It does not connect until Connect is called.
func NewMqttPublisher(cfg *MQTTClientConfig, logger zerolog.Logger, options ...Option) (*MqttPublisher, error) {
	if cfg.BrokerURL == "" && cfg.Host == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("MQTT topic is required")
	}
	o := clientOptions{factory: mqtt.NewClient, observer: noopObserver{}}
	for _, opt := range options {
		opt(&o)
	}
	p := &MqttPublisher{
		cfg:    cfg,
		logger: logger.With().Str("component", "MqttPublisher").Str("topic", cfg.Topic).Logger(),
	}
	opts := newBaseOptions(cfg, p.logger)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.ReconnectWaitMax)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn().Err(err).Msg("MQTT publisher lost connection.")
		o.observer.OnConnectionLost(err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.logger.Info().Str("broker", cfg.URL()).Msg("MQTT publisher connected.")
		o.observer.OnConnected()
	})
	p.client = o.factory(opts)
	return p, nil
}

// Connect makes one connection attempt bounded by the configured connect timeout.
func (p *MqttPublisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	if err := waitToken(ctx, token, p.cfg); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.cfg.URL(), err)
	}
	return nil
}

// Publish sends payload to the topic at the configured QoS and waits for the
// broker to accept it.
func (p *MqttPublisher) Publish(ctx context.Context, payload []byte) error {
	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if err := waitToken(ctx, token, p.cfg); err != nil {
		return fmt.Errorf("failed to publish to MQTT topic %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// IsConnected reports the client's connection state.
func (p *MqttPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects with a short grace period.
func (p *MqttPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.logger.Info().Msg("MQTT publisher closed.")
}

func waitToken(ctx context.Context, token mqtt.Token, cfg *MQTTClientConfig) error {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultMQTTClientConfig().ConnectTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-token.Done():
		return token.Error()
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}
