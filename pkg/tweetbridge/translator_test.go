package tweetbridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetbridge"
)

const fullTweet = `{"user_id":1234,"screen_name":"ada","tweet":"Compilers are fun.","timestamp":"2024-01-01 00:00:00",` +
	`"iso_timestamp":"2024-01-01T00:00:00Z","location":"London","verified":true,"statuses_count":512,` +
	`"mbti_personality":"INTJ","total_retweet_count":3,"total_favorite_count":17}`

func TestTranslator_Scenario(t *testing.T) {
	translator := tweetbridge.NewTranslator("twitter-tweets", "")
	payload := []byte(`{"user_id": 42, "tweet": "hello", "timestamp": "2024-01-01 00:00:00"}`)

	out, err := translator.Translate(payload)
	require.NoError(t, err)
	assert.Equal(t, "twitter-tweets", out.Topic)
	assert.Equal(t, "42", out.Key)
	assert.JSONEq(t, string(payload), string(out.Value))
}

func TestTranslator_RoundTripFidelity(t *testing.T) {
	translator := tweetbridge.NewTranslator("twitter-tweets", "")

	testCases := []struct {
		name    string
		payload string
	}{
		{name: "full wire format", payload: fullTweet},
		{name: "large integer kept exact", payload: `{"user_id":12345678901234567890,"statuses_count":9007199254740993}`},
		{name: "unicode and escapes", payload: `{"user_id":1,"tweet":"café \"quoted\" <b>","location":"東京"}`},
		{name: "nested values", payload: `{"user_id":1,"meta":{"b":2,"a":[1,2.50,null]}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			first, err := translator.Translate([]byte(tc.payload))
			require.NoError(t, err)
			second, err := translator.Translate([]byte(tc.payload))
			require.NoError(t, err)

			assert.Equal(t, first, second, "translation must be deterministic")
			// Compact input is reproduced byte for byte, field order included.
			assert.Equal(t, tc.payload, string(first.Value))
		})
	}
}

func TestTranslator_PreservesFieldOrder(t *testing.T) {
	translator := tweetbridge.NewTranslator("t", "")
	out, err := translator.Translate([]byte(`{ "z": 1,  "user_id": 7, "a": "x" }`))
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"user_id":7,"a":"x"}`, string(out.Value))
}

func TestTranslator_KeyExtraction(t *testing.T) {
	translator := tweetbridge.NewTranslator("t", "")

	testCases := []struct {
		name    string
		payload string
		wantKey string
	}{
		{name: "integer", payload: `{"user_id": 42}`, wantKey: "42"},
		{name: "negative integer", payload: `{"user_id": -3}`, wantKey: "-3"},
		{name: "string", payload: `{"user_id": "u-77"}`, wantKey: "u-77"},
		{name: "missing", payload: `{"tweet": "no id here"}`, wantKey: ""},
		{name: "null", payload: `{"user_id": null, "tweet": "x"}`, wantKey: ""},
		{name: "empty object", payload: `{}`, wantKey: ""},
		{name: "true", payload: `{"user_id": true}`, wantKey: "true"},
		{name: "false", payload: `{"user_id": false}`, wantKey: "false"},
		{name: "duplicate field last wins", payload: `{"user_id": 1, "user_id": 2}`, wantKey: "2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := translator.Translate([]byte(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, out.Key)
		})
	}
}

func TestTranslator_CustomKeyField(t *testing.T) {
	translator := tweetbridge.NewTranslator("t", "screen_name")
	out, err := translator.Translate([]byte(`{"user_id": 42, "screen_name": "ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "ada", out.Key)
}

func TestTranslator_DecodeErrors(t *testing.T) {
	translator := tweetbridge.NewTranslator("t", "")

	testCases := []struct {
		name    string
		payload []byte
	}{
		{name: "not utf-8", payload: []byte{'{', '"', 0xff, 0xfe, '"', ':', '1', '}'}},
		{name: "truncated", payload: []byte(`{"user_id": `)},
		{name: "plain text", payload: []byte(`hello world`)},
		{name: "array", payload: []byte(`[1, 2, 3]`)},
		{name: "string", payload: []byte(`"just a string"`)},
		{name: "trailing data", payload: []byte(`{"user_id": 1} {"user_id": 2}`)},
		{name: "trailing comma", payload: []byte(`{"user_id": 1,}`)},
		{name: "empty", payload: []byte{}},
		{name: "object key", payload: []byte(`{"user_id": {"id": 1}}`)},
		{name: "array key", payload: []byte(`{"user_id": [1]}`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := translator.Translate(tc.payload)
			require.Error(t, err)
			assert.Nil(t, out)

			var decodeErr *tweetbridge.DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected a DecodeError, got %T", err)
			assert.Equal(t, tc.payload, decodeErr.Payload, "raw payload must be retained")
			assert.Equal(t, "DecodeError", messagepipeline.ErrorClass(err))
		})
	}
}

func TestTranslator_Transformer(t *testing.T) {
	transformer := tweetbridge.NewTranslator("twitter-tweets", "").Transformer()

	out, skip, err := transformer(context.Background(), &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "1", Payload: []byte(fullTweet)},
	})
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, "1234", out.Key)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, "ada", decoded["screen_name"])

	_, skip, err = transformer(context.Background(), &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "2", Payload: []byte("{bad")},
	})
	assert.Error(t, err)
	assert.False(t, skip)
}

func TestRecord_Get(t *testing.T) {
	record, err := tweetbridge.ParseRecord([]byte(`{"a": 1, "b": "two"}`))
	require.NoError(t, err)
	require.Len(t, record.Fields, 2)

	v, ok := record.Get("b")
	assert.True(t, ok)
	assert.Equal(t, `"two"`, string(v))

	_, ok = record.Get("c")
	assert.False(t, ok)
}
