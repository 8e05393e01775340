package tweetbridge

import (
	"bytes"
	"encoding/json"
)

// Field is one named value of a Record. Value holds the compact JSON encoding
// exactly as received, so numbers keep their original text.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Record is a decoded JSON object with its fields in payload order.
type Record struct {
	Fields []Field
}

// Get returns the value of the named field. With duplicate names the last one
// wins, as in encoding/json.
func (r *Record) Get(name string) (json.RawMessage, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Name == name {
			return r.Fields[i].Value, true
		}
	}
	return nil, false
}

// MarshalJSON re-encodes the record with its fields in their original order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	out := make([]byte, 0, 64*len(r.Fields)+2)
	out = append(out, '{')
	for i, f := range r.Fields {
		if i > 0 {
			out = append(out, ',')
		}
		buf.Reset()
		if err := enc.Encode(f.Name); err != nil {
			return nil, err
		}
		out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
		out = append(out, ':')
		out = append(out, f.Value...)
	}
	return append(out, '}'), nil
}

// OutboundMessage is a keyed record ready for the log broker. An empty Key means
// the record had no key field.
type OutboundMessage struct {
	Key   string
	Value []byte
	Topic string
}
