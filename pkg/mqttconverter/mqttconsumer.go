package mqttconverter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// MqttConsumer implements the messagepipeline.MessageConsumer interface for an MQTT source.
//
// Messages are handed to the pipeline through a bounded channel. The Paho router
// blocks on that channel, so a slow pipeline throttles how fast messages are
// pulled from the broker. Auto-ack is disabled: a QoS 1 message is acknowledged
// to the broker only when the pipeline acks or nacks it.
type MqttConsumer struct {
	pahoClient mqtt.Client
	logger     zerolog.Logger
	outputChan chan messagepipeline.Message
	doneChan   chan struct{}
	stopping   chan struct{}
	mqttCfg    *MQTTClientConfig
	observer   ConnectionObserver
	tracker    messagepipeline.AckTracker

	mu      sync.RWMutex
	stopped bool

	// lost is set when the connection drops; the next OnConnect is a reconnect.
	lost       atomic.Bool
	subscribed atomic.Bool
	watchOnce  sync.Once
	stopOnce   sync.Once
}

// Option customises an MqttConsumer or MqttPublisher.
type Option func(*clientOptions)

type clientOptions struct {
	factory  ClientFactory
	observer ConnectionObserver
}

// WithClientFactory replaces mqtt.NewClient, mainly for tests.
func WithClientFactory(factory ClientFactory) Option {
	return func(o *clientOptions) { o.factory = factory }
}

// WithConnectionObserver registers a listener for connection state changes.
func WithConnectionObserver(observer ConnectionObserver) Option {
	return func(o *clientOptions) { o.observer = observer }
}

// NewMqttConsumer creates a new MqttConsumer. It does not connect until Start is called.
// bufferSize is the depth of the handoff channel; 1 gives a single-slot handoff.
func NewMqttConsumer(cfg *MQTTClientConfig, logger zerolog.Logger, bufferSize int, options ...Option) (*MqttConsumer, error) {
	if cfg.BrokerURL == "" && cfg.Host == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("MQTT topic is required")
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	o := clientOptions{factory: mqtt.NewClient, observer: noopObserver{}}
	for _, opt := range options {
		opt(&o)
	}

	c := &MqttConsumer{
		logger:     logger.With().Str("component", "MqttConsumer").Str("topic", cfg.Topic).Logger(),
		outputChan: make(chan messagepipeline.Message, bufferSize),
		doneChan:   make(chan struct{}),
		stopping:   make(chan struct{}),
		mqttCfg:    cfg,
		observer:   o.observer,
	}
	c.pahoClient = o.factory(c.createMqttOptions())
	return c, nil
}

// Messages returns the read-only channel from which raw messages can be consumed.
func (c *MqttConsumer) Messages() <-chan messagepipeline.Message {
	return c.outputChan
}

// Start makes one connection attempt, bounded by the configured connect timeout,
// and subscribes to the topic. It returns an error if either step fails; callers
// own the startup retry policy. Once connected, Paho reconnects on its own.
func (c *MqttConsumer) Start(ctx context.Context) error {
	broker := c.mqttCfg.URL()
	c.logger.Info().Str("broker", broker).Msg("Attempting to connect to MQTT broker...")

	token := c.pahoClient.Connect()
	if !token.WaitTimeout(c.mqttCfg.ConnectTimeout) {
		c.pahoClient.Disconnect(0)
		return fmt.Errorf("timed out after %s connecting to MQTT broker %s", c.mqttCfg.ConnectTimeout, broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}
	c.logger.Info().Msg("Initial connection to MQTT broker successful.")

	if err := c.subscribe(); err != nil {
		c.pahoClient.Disconnect(250)
		return err
	}
	c.observer.OnConnected()

	c.watchOnce.Do(func() {
		go func() {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("Shutdown signal received, ensuring consumer is stopped.")
				_ = c.Stop(context.Background())
			case <-c.doneChan:
			}
		}()
	})
	return nil
}

// subscribe subscribes to the configured topic and waits for the broker's SUBACK.
func (c *MqttConsumer) subscribe() error {
	token := c.pahoClient.Subscribe(c.mqttCfg.Topic, c.mqttCfg.QoS, c.handleIncomingMessage)
	if !token.WaitTimeout(c.mqttCfg.ConnectTimeout) {
		return fmt.Errorf("timed out subscribing to MQTT topic %s", c.mqttCfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to MQTT topic %s: %w", c.mqttCfg.Topic, err)
	}
	c.subscribed.Store(true)
	c.logger.Info().Uint8("qos", c.mqttCfg.QoS).Msg("Successfully subscribed to MQTT topic.")
	return nil
}

// Stop gracefully ceases message consumption. It stops accepting messages, waits
// for the ones already handed to the pipeline to be settled, then unsubscribes
// and disconnects.
func (c *MqttConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping MqttConsumer...")
		close(c.stopping)
		c.mu.Lock()
		c.stopped = true
		close(c.outputChan)
		c.mu.Unlock()

		if waitErr := c.tracker.Wait(ctx); waitErr != nil {
			c.logger.Warn().Int("pending", c.tracker.Pending()).Msg("Timeout waiting for in-flight MQTT messages to be settled.")
			err = waitErr
		}

		if c.pahoClient.IsConnected() {
			if token := c.pahoClient.Unsubscribe(c.mqttCfg.Topic); token.WaitTimeout(2*time.Second) && token.Error() != nil {
				c.logger.Warn().Err(token.Error()).Msg("Failed to unsubscribe from MQTT topic.")
			}
			c.pahoClient.Disconnect(500) // 500ms grace period
			c.logger.Info().Msg("Paho MQTT client disconnected.")
		}
		close(c.doneChan)
		c.logger.Info().Msg("MqttConsumer stopped.")
	})
	return err
}

// Done returns a channel that is closed when the consumer has fully stopped.
func (c *MqttConsumer) Done() <-chan struct{} {
	return c.doneChan
}

// IsConnected reports whether the client is connected and subscribed.
func (c *MqttConsumer) IsConnected() bool {
	return c.pahoClient.IsConnected() && c.subscribed.Load()
}

// handleIncomingMessage is the Paho callback that hands MQTT messages to the pipeline.
// It blocks until the pipeline accepts the message or the consumer stops.
func (c *MqttConsumer) handleIncomingMessage(_ mqtt.Client, msg mqtt.Message) {
	c.logger.Debug().Str("mqtt_topic", msg.Topic()).Uint16("mqtt_msg_id", msg.MessageID()).Msg("Received MQTT message")
	payloadCopy := make([]byte, len(msg.Payload()))
	copy(payloadCopy, msg.Payload())

	id := strconv.Itoa(int(msg.MessageID()))
	if msg.MessageID() == 0 {
		// QoS 0 messages carry no packet identifier.
		id = uuid.NewString()
	}

	// MQTT has no negative acknowledgement: a rejected message is acked and dropped.
	ack, nack, release := c.tracker.Track(msg.Ack, msg.Ack)
	consumedMsg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:          id,
			Payload:     payloadCopy,
			PublishTime: time.Now().UTC(),
		},
		Attributes: map[string]string{
			"mqtt_topic":     msg.Topic(),
			"mqtt_qos":       strconv.Itoa(int(msg.Qos())),
			"mqtt_duplicate": strconv.FormatBool(msg.Duplicate()),
		},
		Ack:  ack,
		Nack: nack,
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		release()
		c.logger.Warn().Str("msg_id", id).Msg("Consumer is stopped, leaving MQTT message unacknowledged.")
		return
	}
	select {
	case c.outputChan <- consumedMsg:
	case <-c.stopping:
		release()
		c.logger.Warn().Str("msg_id", id).Msg("Consumer is shutting down, leaving MQTT message unacknowledged.")
	}
}

func (c *MqttConsumer) onConnect(_ mqtt.Client) {
	c.logger.Info().Str("broker", c.mqttCfg.URL()).Msg("Paho client connected to MQTT broker.")
	if !c.lost.Swap(false) {
		// The initial connection is completed by Start.
		return
	}
	if err := c.subscribe(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to resubscribe after reconnect.")
		return
	}
	c.observer.OnConnected()
}

func (c *MqttConsumer) onConnectionLost(_ mqtt.Client, err error) {
	c.lost.Store(true)
	c.subscribed.Store(false)
	c.logger.Error().Err(err).Msg("Paho client lost MQTT connection.")
	c.observer.OnConnectionLost(err)
}

func (c *MqttConsumer) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.logger.Warn().Msg("Paho client attempting to reconnect to MQTT broker.")
	c.observer.OnReconnecting()
}

// createMqttOptions assembles the Paho client options from the config.
func (c *MqttConsumer) createMqttOptions() *mqtt.ClientOptions {
	opts := newBaseOptions(c.mqttCfg, c.logger)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.mqttCfg.ReconnectWaitMax)
	opts.SetOrderMatters(true)
	opts.SetAutoAckDisabled(true)
	// Messages queued in a persistent session can arrive before Subscribe returns.
	opts.SetDefaultPublishHandler(c.handleIncomingMessage)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)
	return opts
}

// newBaseOptions holds the option set shared by the consumer and the publisher.
func newBaseOptions(cfg *MQTTClientConfig, logger zerolog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL())
	opts.SetClientID(clientID(cfg))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectRetry(false)

	broker := strings.ToLower(cfg.URL())
	if strings.HasPrefix(broker, "tls://") || strings.HasPrefix(broker, "ssl://") {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create TLS config, proceeding without it.")
		} else {
			opts.SetTLSConfig(tlsConfig)
			logger.Info().Msg("TLS configured for MQTT client.")
		}
	}
	return opts
}

func clientID(cfg *MQTTClientConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return cfg.ClientIDPrefix + uuid.NewString()[:8]
}
