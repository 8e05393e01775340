package messagepipeline

import (
	"time"
)

// Message is the canonical, internal representation of an event flowing through the
// pipeline. It contains the core data, metadata, and acknowledgment handles.
type Message struct {
	// MessageData contains the core payload.
	MessageData

	// Attributes holds metadata from the message broker (e.g., MQTT topic, Kafka partition).
	Attributes map[string]string

	// Ack is a function to call to signal that processing was successful and the
	// message can be permanently removed from the source.
	Ack func()

	// Nack is a function to call to signal that processing has failed. What that
	// means is up to the source: MQTT has no negative acknowledgement, so the MQTT
	// consumer acks and drops; Kafka commits past the record.
	Nack func()
}

// MessageData holds the essential payload of a message.
type MessageData struct {
	// ID is the identifier for the message from the source broker.
	ID string `json:"id"`

	// Payload is the raw byte content of the message.
	Payload []byte `json:"payload"`

	// PublishTime is the timestamp when the message was received from the source.
	PublishTime time.Time `json:"publishTime"`
}

// OutboundRecord is a keyed message destined for a log broker topic.
type OutboundRecord struct {
	Topic string
	// Key routes the record to a partition. An empty key is sent as a nil key.
	Key   string
	Value []byte
}

// DeliveryReceipt confirms that a record was appended to the log.
type DeliveryReceipt struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Stages recorded on dead letters and failure logs.
const (
	StageTransform = "transform"
	StageProcess   = "process"
)

// DeadLetter describes a message that could not be delivered.
type DeadLetter struct {
	ID         string            `json:"id"`
	Stage      string            `json:"stage"`
	ErrorClass string            `json:"errorClass"`
	Error      string            `json:"error"`
	Message    MessageData       `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	FailedAt   time.Time         `json:"failedAt"`
}
