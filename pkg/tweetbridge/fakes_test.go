package tweetbridge_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
)

// fakeSubscriber stands in for the MQTT consumer: deliver blocks like the paho
// handler does and Stop waits for delivered messages to be settled.
type fakeSubscriber struct {
	out       chan messagepipeline.Message
	done      chan struct{}
	tracker   messagepipeline.AckTracker
	startErrs int32
	starts    atomic.Int32
	connected atomic.Bool
	stopOnce  sync.Once
	// afterStart runs once Start has succeeded, before it returns.
	afterStart func()

	mu      sync.Mutex
	acked   []string
	nacked  []string
	counter int
}

func newFakeSubscriber(buffer int) *fakeSubscriber {
	return &fakeSubscriber{
		out:  make(chan messagepipeline.Message, buffer),
		done: make(chan struct{}),
	}
}

func (f *fakeSubscriber) Messages() <-chan messagepipeline.Message { return f.out }
func (f *fakeSubscriber) Done() <-chan struct{}                    { return f.done }
func (f *fakeSubscriber) IsConnected() bool                        { return f.connected.Load() }

func (f *fakeSubscriber) Start(_ context.Context) error {
	if f.starts.Add(1) <= f.startErrs {
		return errors.New("connection refused")
	}
	f.connected.Store(true)
	if f.afterStart != nil {
		f.afterStart()
	}
	return nil
}

func (f *fakeSubscriber) Stop(ctx context.Context) error {
	var err error
	f.stopOnce.Do(func() {
		close(f.out)
		err = f.tracker.Wait(ctx)
		f.connected.Store(false)
		close(f.done)
	})
	return err
}

func (f *fakeSubscriber) deliver(payload string) string {
	f.mu.Lock()
	f.counter++
	id := fmt.Sprintf("msg-%d", f.counter)
	f.mu.Unlock()

	ack, nack, _ := f.tracker.Track(
		func() { f.record(&f.acked, id) },
		func() { f.record(&f.nacked, id) },
	)
	f.out <- messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload), PublishTime: time.Now()},
		Ack:         ack,
		Nack:        nack,
	}
	return id
}

func (f *fakeSubscriber) record(list *[]string, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, id)
}

func (f *fakeSubscriber) settled() (acked, nacked []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...), append([]string(nil), f.nacked...)
}

// fakePublisher records acknowledged records. publishFn, when set, decides the
// outcome of each publish before it is recorded.
type fakePublisher struct {
	connectErrs int32
	connects    atomic.Int32
	publishFn   func(ctx context.Context, rec messagepipeline.OutboundRecord) error

	mu        sync.Mutex
	attempts  []messagepipeline.OutboundRecord
	published []messagepipeline.OutboundRecord
	stopped   bool
}

func (p *fakePublisher) Connect(_ context.Context) error {
	if p.connects.Add(1) <= p.connectErrs {
		return errors.New("kafka: no brokers reachable")
	}
	return nil
}

func (p *fakePublisher) Publish(ctx context.Context, rec messagepipeline.OutboundRecord) (messagepipeline.DeliveryReceipt, error) {
	p.mu.Lock()
	p.attempts = append(p.attempts, rec)
	p.mu.Unlock()

	if p.publishFn != nil {
		if err := p.publishFn(ctx, rec); err != nil {
			return messagepipeline.DeliveryReceipt{}, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, rec)
	return messagepipeline.DeliveryReceipt{Topic: rec.Topic, Partition: 0, Offset: int64(len(p.published) - 1)}, nil
}

func (p *fakePublisher) Stop(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *fakePublisher) publishedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.published))
	for _, rec := range p.published {
		keys = append(keys, rec.Key)
	}
	return keys
}

func (p *fakePublisher) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type recordingSink struct {
	mu      sync.Mutex
	letters []messagepipeline.DeadLetter
	closed  bool
}

func (s *recordingSink) Write(_ context.Context, letter messagepipeline.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

func (s *recordingSink) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) all() []messagepipeline.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]messagepipeline.DeadLetter(nil), s.letters...)
}
