package mqttconverter

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// MQTTClientConfig holds all necessary configuration for the Paho MQTT client.
// It defines connection parameters, security settings, and the single topic
// subscription for the consumer.
type MQTTClientConfig struct {
	// Host and Port locate the broker when BrokerURL is empty.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BrokerURL is the full URL of the MQTT broker, e.g. "tls://mqtt.example.com:8883".
	// It takes precedence over Host and Port.
	BrokerURL string `yaml:"broker_url"`
	// Topic is the one topic the consumer subscribes to and the publisher writes to.
	Topic string `yaml:"topic"`
	QoS   byte   `yaml:"qos"`
	// ClientID, when set, is used verbatim. A stable ID together with CleanSession=false
	// lets the broker queue QoS 1 messages while the bridge is away.
	ClientID string `yaml:"client_id"`
	// ClientIDPrefix is used with a random suffix when ClientID is empty.
	ClientIDPrefix string `yaml:"client_id_prefix"`
	CleanSession   bool   `yaml:"clean_session"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	// KeepAlive is the interval at which the client sends keep-alive pings to the broker.
	KeepAlive time.Duration `yaml:"keep_alive"`
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ReconnectWaitMax caps the backoff between automatic reconnect attempts.
	ReconnectWaitMax time.Duration `yaml:"reconnect_wait_max"`
	// CACertFile is an optional path to a CA certificate file for verifying the broker's certificate.
	CACertFile string `yaml:"ca_cert_file"`
	// ClientCertFile is an optional path to a client certificate file for mTLS authentication.
	ClientCertFile string `yaml:"client_cert_file"`
	// ClientKeyFile is an optional path to a client key file for mTLS authentication.
	ClientKeyFile string `yaml:"client_key_file"`
	// InsecureSkipVerify skips TLS certificate verification.
	// This is NOT recommended for production environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Env constants for setting Mqtt settings
const (
	MqttBroker                = "MQTT_BROKER"
	MqttPort                  = "MQTT_PORT"
	MqttTopic                 = "MQTT_TOPIC"
	MqttQoS                   = "MQTT_QOS"
	MqttClientID              = "MQTT_CLIENT_ID"
	MqttCleanSession          = "MQTT_CLEAN_SESSION"
	MqttSkipVerify            = "MQTT_INSECURE_SKIP_VERIFY"
	MqttKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	MqttConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
)

// DefaultMQTTClientConfig returns the built-in defaults without reading the environment.
func DefaultMQTTClientConfig() *MQTTClientConfig {
	return &MQTTClientConfig{
		Host:             "mosquitto",
		Port:             1883,
		Topic:            "twitter/tweets",
		QoS:              1,
		ClientIDPrefix:   "tweet-bridge-",
		CleanSession:     true,
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ReconnectWaitMax: 120 * time.Second,
	}
}

// LoadMQTTClientConfigFromEnv loads MQTT configuration from environment variables,
// falling back to the defaults for anything unset or unparseable.
func LoadMQTTClientConfigFromEnv() *MQTTClientConfig {
	cfg := DefaultMQTTClientConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields whose environment variables are set.
func (cfg *MQTTClientConfig) ApplyEnv() {
	if host := os.Getenv(MqttBroker); host != "" {
		cfg.Host = host
	}
	if p := os.Getenv(MqttPort); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Port = port
		} else {
			log.Printf("mqttconverter: error parsing port: %s, using default", err)
		}
	}
	if topic := os.Getenv(MqttTopic); topic != "" {
		cfg.Topic = topic
	}
	if q := os.Getenv(MqttQoS); q != "" {
		if qos, err := strconv.ParseUint(q, 10, 8); err == nil && qos <= 2 {
			cfg.QoS = byte(qos)
		} else {
			log.Printf("mqttconverter: invalid qos %q, using default", q)
		}
	}
	if id := os.Getenv(MqttClientID); id != "" {
		cfg.ClientID = id
	}
	if cs := os.Getenv(MqttCleanSession); cs != "" {
		if val, err := strconv.ParseBool(cs); err == nil {
			cfg.CleanSession = val
		}
	}
	if skipVerify := os.Getenv(MqttSkipVerify); skipVerify == "true" {
		cfg.InsecureSkipVerify = true
	}

	// Parse durations if set in env, otherwise keep defaults
	if ka := os.Getenv(MqttKeepAliveSeconds); ka != "" {
		s, err := time.ParseDuration(ka + "s")
		if err == nil {
			cfg.KeepAlive = s
		} else {
			log.Printf("mqttconverter: error parsing keepAlive seconds: %s, using default", err)
		}
	}
	if ct := os.Getenv(MqttConnectTimeoutSeconds); ct != "" {
		s, err := time.ParseDuration(ct + "s")
		if err == nil {
			cfg.ConnectTimeout = s
		} else {
			log.Printf("mqttconverter: error parsing connect timeout seconds: %s, using default", err)
		}
	}
}

// URL returns the broker URL, building tcp://host:port when BrokerURL is unset.
func (cfg *MQTTClientConfig) URL() string {
	if cfg.BrokerURL != "" {
		return cfg.BrokerURL
	}
	return "tcp://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// newTLSConfig is a helper to create a tls.Config.
func newTLSConfig(cfg *MQTTClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert file %s: %w", cfg.CACertFile, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA cert from %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = caCertPool
	}
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
