package tweetbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// DefaultKeyField is the record field that carries the partition key.
const DefaultKeyField = "user_id"

// Translator turns an inbound MQTT payload into a keyed Kafka record. It holds no
// mutable state and is safe for concurrent use.
type Translator struct {
	topic    string
	keyField string
}

// NewTranslator creates a Translator targeting topic. An empty keyField selects
// DefaultKeyField.
func NewTranslator(topic, keyField string) *Translator {
	if keyField == "" {
		keyField = DefaultKeyField
	}
	return &Translator{topic: topic, keyField: keyField}
}

// Translate decodes payload as a JSON object, derives the key from the key field
// and re-encodes the full record. A missing or null key field yields an empty key.
func (t *Translator) Translate(payload []byte) (*OutboundMessage, error) {
	record, err := ParseRecord(payload)
	if err != nil {
		return nil, err
	}

	var key string
	if raw, ok := record.Get(t.keyField); ok {
		key, err = keyFromValue(raw)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("field %q", t.keyField), Payload: payload, Err: err}
		}
	}

	value, err := record.MarshalJSON()
	if err != nil {
		return nil, &DecodeError{Reason: "re-encode record", Payload: payload, Err: err}
	}
	return &OutboundMessage{Key: key, Value: value, Topic: t.topic}, nil
}

// Transformer adapts Translate to the pipeline's transformer contract. Nothing is
// skipped: every message is either forwarded or rejected.
func (t *Translator) Transformer() messagepipeline.MessageTransformer[OutboundMessage] {
	return func(_ context.Context, msg *messagepipeline.Message) (*OutboundMessage, bool, error) {
		out, err := t.Translate(msg.Payload)
		return out, false, err
	}
}

// ParseRecord decodes a UTF-8 JSON object, keeping field order and the exact
// text of every value.
func ParseRecord(payload []byte) (*Record, error) {
	if !utf8.Valid(payload) {
		return nil, &DecodeError{Reason: "payload is not valid UTF-8", Payload: payload}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &DecodeError{Reason: "payload is not a JSON object", Payload: payload}
	}

	record := &Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: err}
		}
		name, ok := tok.(string)
		if !ok {
			return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: fmt.Errorf("unexpected token %v", tok)}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: err}
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: err}
		}
		record.Fields = append(record.Fields, Field{Name: name, Value: compact.Bytes()})
	}
	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Payload: payload, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Reason: "trailing data after JSON object", Payload: payload, Err: err}
	}
	return record, nil
}

// keyFromValue renders a key field as a string: numbers and booleans keep their
// literal text, strings are used as-is, null means no key.
func keyFromValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 't', 'f':
		return string(raw), nil
	default:
		return "", fmt.Errorf("unsupported key type in %s", raw)
	}
}
