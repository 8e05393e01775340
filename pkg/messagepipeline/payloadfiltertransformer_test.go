package messagepipeline_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// validationTestPayload is a simple struct used for transformation in tests.
type validationTestPayload struct {
	Content string `json:"content"`
}

// TestWithPayloadValidation tests the payload size validation decorator.
func TestWithPayloadValidation(t *testing.T) {
	var innerTransformerCalled bool
	innerTransformer := func(ctx context.Context, msg *messagepipeline.Message) (*validationTestPayload, bool, error) {
		innerTransformerCalled = true
		var p validationTestPayload
		err := json.Unmarshal(msg.Payload, &p)
		return &p, false, err
	}

	testCases := []struct {
		name            string
		payload         []byte
		minSize         int
		maxSize         int
		expectSizeErr   bool
		expectInnerCall bool
	}{
		{
			name:            "payload within valid range",
			payload:         []byte(`{"content":"this is valid"}`),
			minSize:         13,
			maxSize:         30,
			expectInnerCall: true,
		},
		{
			name:          "payload too short",
			payload:       []byte(`{"c":"v"}`),
			minSize:       13,
			maxSize:       30,
			expectSizeErr: true,
		},
		{
			name:          "payload too long",
			payload:       []byte(`{"content":"this payload is definitely too long"}`),
			minSize:       13,
			maxSize:       30,
			expectSizeErr: true,
		},
		{
			name:          "empty payload",
			payload:       nil,
			minSize:       1,
			maxSize:       30,
			expectSizeErr: true,
		},
		{
			name:            "zero max leaves the upper bound open",
			payload:         []byte(`{"content":"this payload is definitely too long"}`),
			minSize:         0,
			maxSize:         0,
			expectInnerCall: true,
		},
		{
			name:            "payload is exactly min size",
			payload:         []byte(`{"content":""}`),
			minSize:         14,
			maxSize:         30,
			expectInnerCall: true,
		},
		{
			name:            "payload is exactly max size",
			payload:         []byte(`{"content":"0123456789012345"}`),
			minSize:         13,
			maxSize:         30,
			expectInnerCall: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			innerTransformerCalled = false
			decorated := messagepipeline.WithPayloadValidation(innerTransformer, tc.minSize, tc.maxSize)

			_, skip, err := decorated(context.Background(), &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "test-id", Payload: tc.payload},
			})

			assert.False(t, skip)
			if tc.expectSizeErr {
				var sizeErr *messagepipeline.PayloadSizeError
				require.ErrorAs(t, err, &sizeErr)
				assert.Equal(t, len(tc.payload), sizeErr.Size)
				assert.Equal(t, "PayloadSizeError", messagepipeline.ErrorClass(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expectInnerCall, innerTransformerCalled)
		})
	}
}
