package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/coreengine/envelope"
)

func TestPublishThenConsumeReturnsEnvelope(t *testing.T) {
	b := NewInMemoryBroker(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.EnsureStream(ctx, "agent_codegen_tasks"))

	env := envelope.NewNormal("preprocessor", "codegen", "trace-1", "conv-1", map[string]any{"request": "hi"})
	require.NoError(t, b.Publish(ctx, "agent_codegen_tasks", env))

	delivery, ok, err := b.Consume(ctx, "agent_codegen_tasks", "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "conv-1", delivery.Envelope.ConversationID)
	assert.NotEmpty(t, delivery.DeliveryID)
}

func TestConsumeEmptyStreamWaitsThenReturnsFalse(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "agent_codegen_tasks"))

	delivery, ok, err := b.Consume(ctx, "agent_codegen_tasks", "worker-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, delivery)
}

func TestConsumeRespectsContextCancellation(t *testing.T) {
	b := NewInMemoryBroker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.EnsureStream(ctx, "agent_codegen_tasks"))

	cancel()
	_, _, err := b.Consume(ctx, "agent_codegen_tasks", "worker-1")
	assert.Error(t, err)
}

func TestAckRemovesFromInProgressAndIncrementsCompleted(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "s"))
	require.NoError(t, b.Publish(ctx, "s", envelope.Envelope{}))

	delivery, ok, err := b.Consume(ctx, "s", "worker-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Ack(ctx, delivery.DeliveryID))

	stats, err := b.QueueStats(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.InProgressCount)
	assert.Equal(t, 1, stats.CompletedCount)
}

func TestNackWithRequeuePutsMessageBack(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "s"))
	require.NoError(t, b.Publish(ctx, "s", envelope.NewNormal("a", "b", "t", "c", "payload")))

	delivery, ok, err := b.Consume(ctx, "s", "worker-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Nack(ctx, delivery.DeliveryID, true))

	stats, err := b.QueueStats(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 0, stats.FailedCount)

	redelivered, ok, err := b.Consume(ctx, "s", "worker-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", redelivered.Envelope.Payload)
}

func TestNackWithoutRequeueDropsAndCountsFailed(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "s"))
	require.NoError(t, b.Publish(ctx, "s", envelope.Envelope{}))

	delivery, _, err := b.Consume(ctx, "s", "worker-1")
	require.NoError(t, err)

	require.NoError(t, b.Nack(ctx, delivery.DeliveryID, false))

	stats, err := b.QueueStats(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingCount)
	assert.Equal(t, 1, stats.FailedCount)
}

func TestEnsureStreamIsIdempotent(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "s"))
	require.NoError(t, b.EnsureStream(ctx, "s"))

	streams, err := b.ListStreams(ctx)
	require.NoError(t, err)
	assert.Len(t, streams, 1)
}

func TestQueueOrderingIsFIFO(t *testing.T) {
	b := NewInMemoryBroker(5 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, b.EnsureStream(ctx, "s"))
	require.NoError(t, b.Publish(ctx, "s", envelope.NewNormal("a", "b", "t", "c", "first")))
	require.NoError(t, b.Publish(ctx, "s", envelope.NewNormal("a", "b", "t", "c", "second")))

	first, _, err := b.Consume(ctx, "s", "w")
	require.NoError(t, err)
	second, _, err := b.Consume(ctx, "s", "w")
	require.NoError(t, err)

	assert.Equal(t, "first", first.Envelope.Payload)
	assert.Equal(t, "second", second.Envelope.Payload)
}
