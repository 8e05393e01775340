package tweetbridge

import (
	"fmt"
)

// DecodeError rejects an inbound payload that is not a UTF-8 JSON object or whose
// key field has an unusable type. The raw payload is kept for the failure log.
type DecodeError struct {
	Reason  string
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode payload: %s: %v", e.Reason, e.Err)
	}
	return "decode payload: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Class implements the error classification used in failure logs.
func (e *DecodeError) Class() string { return "DecodeError" }

// PublishError reports a record the log broker did not acknowledge, after the
// producer's own retries and the publish timeout.
type PublishError struct {
	Topic string
	Key   string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s (key %q): %v", e.Topic, e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Class() string { return "PublishError" }

// ConnectionError is returned when a broker could not be reached within the
// bounded startup retry. It is fatal.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to brokers after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Class() string { return "ConnectionError" }
