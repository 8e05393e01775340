package tweetbridge

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the bridge's own settings. Broker settings live with the
// MQTT and Kafka clients.
type Config struct {
	// StartupAttempts bounds how often the supervisor tries to reach both brokers
	// before giving up with a ConnectionError.
	StartupAttempts int           `yaml:"startup_attempts"`
	StartupBackoff  time.Duration `yaml:"startup_backoff"`
	// ConnectTimeout bounds each Kafka reachability check during startup.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	// MaxPayloadBytes rejects larger payloads before translation. 0 means no limit.
	MaxPayloadBytes int    `yaml:"max_payload_bytes"`
	KeyField        string `yaml:"key_field"`
}

// Env constants for bridge settings.
const (
	BridgeStartupAttempts = "BRIDGE_STARTUP_ATTEMPTS"
	BridgeStartupBackoff  = "BRIDGE_STARTUP_BACKOFF"
	BridgeDrainTimeout    = "BRIDGE_DRAIN_TIMEOUT"
	BridgeMaxPayloadBytes = "BRIDGE_MAX_PAYLOAD_BYTES"
)

// DefaultConfig returns the built-in defaults without reading the environment.
func DefaultConfig() *Config {
	return &Config{
		StartupAttempts: 5,
		StartupBackoff:  2 * time.Second,
		ConnectTimeout:  10 * time.Second,
		DrainTimeout:    30 * time.Second,
		MaxPayloadBytes: 0,
		KeyField:        DefaultKeyField,
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
	if v := os.Getenv(BridgeStartupAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StartupAttempts = n
		} else {
			log.Printf("tweetbridge: invalid %s %q, using default", BridgeStartupAttempts, v)
		}
	}
	if v := os.Getenv(BridgeStartupBackoff); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StartupBackoff = d
		} else {
			log.Printf("tweetbridge: invalid %s %q, using default", BridgeStartupBackoff, v)
		}
	}
	if v := os.Getenv(BridgeDrainTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DrainTimeout = d
		}
	}
	if v := os.Getenv(BridgeMaxPayloadBytes); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxPayloadBytes = n
		}
	}
}
