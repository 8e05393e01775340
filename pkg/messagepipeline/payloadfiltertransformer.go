package messagepipeline

import (
	"context"
	"fmt"
)

// PayloadSizeError rejects a message whose payload is outside the accepted size range.
type PayloadSizeError struct {
	Size int
	Min  int
	Max  int
}

func (e *PayloadSizeError) Error() string {
	return fmt.Sprintf("payload size %d outside accepted range [%d, %d]", e.Size, e.Min, e.Max)
}

// Class implements the error classification used in failure logs.
func (e *PayloadSizeError) Class() string { return "PayloadSizeError" }

// WithPayloadValidation is a decorator function. It takes an existing MessageTransformer
// and returns a new one that first performs payload size validation.
// Out-of-range payloads are rejected with a *PayloadSizeError and never reach the inner transformer.
// A maxSize of zero or less leaves the upper bound open.
func WithPayloadValidation[T any](
	innerTransformer MessageTransformer[T],
	minSize int,
	maxSize int,
) MessageTransformer[T] {
	return func(ctx context.Context, msg *Message) (*T, bool, error) {
		payloadLen := len(msg.Payload)
		if payloadLen < minSize || (maxSize > 0 && payloadLen > maxSize) {
			return nil, false, &PayloadSizeError{Size: payloadLen, Min: minSize, Max: maxSize}
		}
		return innerTransformer(ctx, msg)
	}
}
