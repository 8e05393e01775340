// Package tweets holds the typed tweet record shared by the generator and the
// SQL sink.
package tweets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp layouts used on the wire.
const (
	TimestampLayout    = "2006-01-02 15:04:05"
	ISOTimestampLayout = "2006-01-02T15:04:05.000000"
)

// UnknownPersonality is stored when a tweet carries no MBTI label.
const UnknownPersonality = "unknown"

// Tweet is one synthetic tweet as published on MQTT and bridged to Kafka.
// The field order is the wire order.
type Tweet struct {
	UserID             *int64 `json:"user_id"`
	ScreenName         string `json:"screen_name"`
	Text               string `json:"tweet"`
	Timestamp          string `json:"timestamp,omitempty"`
	ISOTimestamp       string `json:"iso_timestamp,omitempty"`
	Location           string `json:"location"`
	Verified           bool   `json:"verified"`
	StatusesCount      int64  `json:"statuses_count"`
	MBTIPersonality    string `json:"mbti_personality"`
	TotalRetweetCount  int64  `json:"total_retweet_count"`
	TotalFavoriteCount int64  `json:"total_favorite_count"`
}

// DecodeError rejects a record that is not a tweet.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode tweet: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Class implements the error classification used in failure logs.
func (e *DecodeError) Class() string { return "DecodeError" }

// Decode parses a JSON tweet. Missing fields take the zero value, except the
// personality which defaults to UnknownPersonality.
func Decode(data []byte) (*Tweet, error) {
	t := &Tweet{MBTIPersonality: UnknownPersonality}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return t, nil
}

// isoLayouts are tried in order for iso_timestamp. Zone-less values are UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseISOTimestamp accepts RFC 3339 with or without a zone and with either
// separator. A trailing "Z" means UTC.
func ParseISOTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised ISO timestamp %q", s)
}

// ResolveTime picks the tweet's time: iso_timestamp, then timestamp, then now.
// Unparseable values fall through to the next source.
func (t *Tweet) ResolveTime(now func() time.Time) time.Time {
	if t.ISOTimestamp != "" {
		if ts, err := ParseISOTimestamp(t.ISOTimestamp); err == nil {
			return ts
		}
	}
	if t.Timestamp != "" {
		if ts, err := time.Parse(TimestampLayout, t.Timestamp); err == nil {
			return ts
		}
	}
	return now().UTC()
}

// Int64 returns a pointer to v, for building tweets with a user ID.
func Int64(v int64) *int64 { return &v }
