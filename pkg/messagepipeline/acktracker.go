package messagepipeline

import (
	"context"
	"sync"
)

// AckTracker counts messages handed to the pipeline that have not been acked or
// nacked yet. Consumers use it to hold their connection open until every
// delivered message has a final outcome.
type AckTracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// Track registers one delivered message. The returned ack and nack wrap the
// originals and settle the message once; release settles it without calling
// either, for messages that never reached the pipeline.
func (t *AckTracker) Track(ack, nack func()) (trackedAck, trackedNack, release func()) {
	t.mu.Lock()
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
	t.mu.Unlock()

	var once sync.Once
	settle := func(fn func()) func() {
		return func() {
			once.Do(func() {
				if fn != nil {
					fn()
				}
				t.done()
			})
		}
	}
	return settle(ack), settle(nack), settle(nil)
}

func (t *AckTracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

// Pending returns the number of unsettled messages.
func (t *AckTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Wait blocks until no message is pending or ctx is done.
func (t *AckTracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
