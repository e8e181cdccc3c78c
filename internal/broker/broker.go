// Package broker specializes commbus's DistributedBus queue shape
// (commbus.DistributedBus/DistributedTask/QueueStats) to carry envelopes
// between agent processes over named streams. The in-process implementation
// here is durable only for the lifetime of the owning process; it is the
// default local transport used by every cmd/ entrypoint and by tests.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentpipeline/core/coreengine/envelope"
)

// Broker is the abstraction agents use to exchange envelopes. Declarative
// stream creation is idempotent: calling EnsureStream twice is not an error.
type Broker interface {
	EnsureStream(ctx context.Context, streamName string) error
	Publish(ctx context.Context, streamName string, env envelope.Envelope) error
	// Consume blocks for up to the broker's configured idle wait before
	// returning (nil, false, nil) when the stream is empty. A returned
	// message must be acked (remove) or nacked (requeue-or-drop).
	Consume(ctx context.Context, streamName string, workerID string) (*Delivery, bool, error)
	Ack(ctx context.Context, deliveryID string) error
	Nack(ctx context.Context, deliveryID string, requeue bool) error
	QueueStats(ctx context.Context, streamName string) (Stats, error)
	ListStreams(ctx context.Context) ([]string, error)
	Close() error
}

// Delivery is one dequeued envelope, carrying the broker-assigned delivery id
// an agent must present back to Ack/Nack.
type Delivery struct {
	DeliveryID string
	Envelope   envelope.Envelope
}

// Stats mirrors commbus.QueueStats, specialized to envelope streams.
type Stats struct {
	StreamName      string
	PendingCount    int
	InProgressCount int
	CompletedCount  int
	FailedCount     int
}

type queuedMessage struct {
	deliveryID string
	env        envelope.Envelope
}

// InMemoryBroker is a mutex-guarded, single-process durable queue. Publish
// operations are serialized through one lock guarding all stream state,
// grounded on commbus/bus.go's sync.RWMutex-guarded subscriber/handler maps
// — a publishing race must not corrupt the wire stream.
type InMemoryBroker struct {
	mu          sync.Mutex
	streams     map[string][]queuedMessage
	inProgress  map[string]queuedMessage // deliveryID -> message, for nack/ack bookkeeping
	inProgressBy map[string]string       // deliveryID -> streamName
	completed   map[string]int
	failed      map[string]int
	idleWait    time.Duration
}

// NewInMemoryBroker constructs a broker whose Consume call sleeps idleWait
// between empty polls instead of busy-looping.
func NewInMemoryBroker(idleWait time.Duration) *InMemoryBroker {
	return &InMemoryBroker{
		streams:      make(map[string][]queuedMessage),
		inProgress:   make(map[string]queuedMessage),
		inProgressBy: make(map[string]string),
		completed:    make(map[string]int),
		failed:       make(map[string]int),
		idleWait:     idleWait,
	}
}

func (b *InMemoryBroker) EnsureStream(_ context.Context, streamName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[streamName]; !ok {
		b.streams[streamName] = nil
	}
	return nil
}

func (b *InMemoryBroker) Publish(_ context.Context, streamName string, env envelope.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[streamName] = append(b.streams[streamName], queuedMessage{
		deliveryID: uuid.NewString(),
		env:        env,
	})
	return nil
}

func (b *InMemoryBroker) Consume(ctx context.Context, streamName string, _ string) (*Delivery, bool, error) {
	b.mu.Lock()
	queue := b.streams[streamName]
	if len(queue) == 0 {
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(b.idleWait):
		}
		return nil, false, nil
	}

	msg := queue[0]
	b.streams[streamName] = queue[1:]
	b.inProgress[msg.deliveryID] = msg
	b.inProgressBy[msg.deliveryID] = streamName
	b.mu.Unlock()

	return &Delivery{DeliveryID: msg.deliveryID, Envelope: msg.env}, true, nil
}

func (b *InMemoryBroker) Ack(_ context.Context, deliveryID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	streamName := b.inProgressBy[deliveryID]
	delete(b.inProgress, deliveryID)
	delete(b.inProgressBy, deliveryID)
	b.completed[streamName]++
	return nil
}

func (b *InMemoryBroker) Nack(_ context.Context, deliveryID string, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.inProgress[deliveryID]
	streamName := b.inProgressBy[deliveryID]
	delete(b.inProgress, deliveryID)
	delete(b.inProgressBy, deliveryID)
	if !ok {
		return nil
	}
	if requeue {
		b.streams[streamName] = append(b.streams[streamName], msg)
	} else {
		b.failed[streamName]++
	}
	return nil
}

func (b *InMemoryBroker) QueueStats(_ context.Context, streamName string) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inProgress := 0
	for _, s := range b.inProgressBy {
		if s == streamName {
			inProgress++
		}
	}

	return Stats{
		StreamName:      streamName,
		PendingCount:    len(b.streams[streamName]),
		InProgressCount: inProgress,
		CompletedCount:  b.completed[streamName],
		FailedCount:     b.failed[streamName],
	}, nil
}

func (b *InMemoryBroker) ListStreams(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.streams))
	for name := range b.streams {
		names = append(names, name)
	}
	return names, nil
}

func (b *InMemoryBroker) Close() error { return nil }

var _ Broker = (*InMemoryBroker)(nil)
