package tweetbridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// State is the supervisor's view of the bridge's connections.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateReconnecting
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateReady:
		return "Ready"
	case StateReconnecting:
		return "Reconnecting"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Supervisor sequences connect, reconnect and shutdown for a Bridge. It also
// implements mqttconverter.ConnectionObserver so the subscriber can report
// connection loss and recovery.
type Supervisor struct {
	startup        messagepipeline.RetryPolicy
	connectTimeout time.Duration
	drainTimeout   time.Duration
	logger         zerolog.Logger

	mu      sync.Mutex
	state   State
	changed chan struct{}
}

// NewSupervisor creates a supervisor in the Disconnected state.
func NewSupervisor(cfg *Config, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		startup: messagepipeline.RetryPolicy{
			MaxAttempts: cfg.StartupAttempts,
			Delay:       messagepipeline.ExponentialDelay(cfg.StartupBackoff, 30*time.Second),
		},
		connectTimeout: cfg.ConnectTimeout,
		drainTimeout:   cfg.DrainTimeout,
		logger:         logger.With().Str("component", "Supervisor").Logger(),
		state:          StateDisconnected,
		changed:        make(chan struct{}),
	}
}

// WithStartupPolicy replaces the startup retry policy.
func (s *Supervisor) WithStartupPolicy(p messagepipeline.RetryPolicy) *Supervisor {
	s.startup = p
	return s
}

// Run connects the bridge, forwards messages until ctx is cancelled or the
// subscriber stops on its own, then drains. It returns a *ConnectionError when
// the brokers cannot be reached within the startup policy. Cancelling ctx during
// startup is a clean shutdown.
func (s *Supervisor) Run(ctx context.Context, b *Bridge) error {
	// The pipeline runs on a context the shutdown signal does not cancel, so the
	// in-flight publish can complete during Draining.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	if err := s.connect(ctx, runCtx, b); err != nil {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Shutdown requested during startup.")
			s.shutdownOutputs(ctx, b)
			return nil
		}
		s.shutdownOutputs(ctx, b)
		return err
	}
	// A connection lost during startup has already moved the state to
	// Reconnecting; OnConnected brings it to Ready after the resubscribe.
	s.transition(StateConnecting, StateReady)

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("Shutdown signal received.")
	case <-b.subscriber.Done():
		s.logger.Warn().Msg("Subscriber stopped unexpectedly.")
	}

	s.setState(StateDraining)
	drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancelDrain()
	err := b.drain(drainCtx)
	cancelRun()
	s.setState(StateStopped)
	s.logger.Info().Int64("forwarded", b.Forwarded()).Msg("Bridge stopped.")
	return err
}

// connect makes bounded attempts to reach the log broker and then the pub/sub broker.
func (s *Supervisor) connect(ctx, runCtx context.Context, b *Bridge) error {
	err := s.startup.Do(ctx, func(ctx context.Context, attempt int) error {
		s.setState(StateConnecting)
		s.logger.Info().Int("attempt", attempt).Msg("Connecting to brokers...")

		pingCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
		if err := b.connectPublisher(pingCtx); err != nil {
			return err
		}
		return b.start(runCtx)
	}, func(attempt int, err error, wait time.Duration) {
		s.setState(StateDisconnected)
		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("Broker connection failed, retrying.")
	})
	if err == nil {
		return nil
	}

	s.setState(StateDisconnected)
	var retryErr *messagepipeline.RetryError
	if errors.As(err, &retryErr) {
		return &ConnectionError{Attempts: retryErr.Attempts, Err: retryErr.Err}
	}
	return &ConnectionError{Attempts: s.startup.MaxAttempts, Err: err}
}

func (s *Supervisor) shutdownOutputs(ctx context.Context, b *Bridge) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	_ = b.closeOutputs(closeCtx)
	s.setState(StateStopped)
}

// OnConnected is called by the subscriber once it is subscribed again after a reconnect.
func (s *Supervisor) OnConnected() {
	if s.transition(StateReconnecting, StateReady) {
		s.logger.Info().Msg("Subscriber resubscribed, forwarding resumed.")
	}
}

// OnConnectionLost is called by the subscriber when its broker connection drops.
func (s *Supervisor) OnConnectionLost(err error) {
	if s.transition(StateReady, StateReconnecting) || s.transition(StateConnecting, StateReconnecting) {
		s.logger.Warn().Err(err).Msg("Subscriber connection lost, reconnecting.")
	}
}

// OnReconnecting is called for every automatic reconnect attempt.
func (s *Supervisor) OnReconnecting() {
	s.transition(StateReady, StateReconnecting)
	s.logger.Debug().Msg("Subscriber reconnect attempt.")
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether the bridge is connected and forwarding.
func (s *Supervisor) Ready() bool {
	return s.State() == StateReady
}

// WaitForState blocks until the supervisor is in want or ctx is done.
func (s *Supervisor) WaitForState(ctx context.Context, want State) error {
	for {
		s.mu.Lock()
		current, changed := s.state, s.changed
		s.mu.Unlock()
		if current == want {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// transition moves from one state to another only if the current state matches.
func (s *Supervisor) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.setStateLocked(to)
	return true
}

func (s *Supervisor) setState(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(to)
}

func (s *Supervisor) setStateLocked(to State) {
	if s.state == to {
		return
	}
	s.logger.Info().Str("from", s.state.String()).Str("to", to.String()).Msg("State changed.")
	s.state = to
	close(s.changed)
	s.changed = make(chan struct{})
}
