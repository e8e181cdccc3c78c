package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/commbus"
	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/process"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/obslog"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BrokerConnectRetries = 1
	cfg.BrokerConnectRetrySpacing = time.Millisecond
	cfg.DrainTimeout = 2 * time.Second
	return cfg
}

func newTestSink(t *testing.T) *obslog.Sink {
	t.Helper()
	dir := t.TempDir()
	return obslog.NewSink(filepath.Join(dir, "agent_logs"), filepath.Join(dir, "conversation_logs"))
}

func passthroughDecoder(input envelope.DecodeInput) (any, error) { return input.Payload, nil }
func mapEncoder(v any) (any, error)                              { return map[string]any{"value": v}, nil }

func nonTerminalDef(t *testing.T, name, outputAgent string) *agentdef.AgentDefinition {
	t.Helper()
	def, err := agentdef.New(name).
		WithInput(envelope.StreamNameFor(name), passthroughDecoder).
		WithStages(process.Pure("uppercase", func(v any) (any, error) { return v, nil })).
		WithOutput(envelope.StreamNameFor(outputAgent), mapEncoder).
		Build()
	require.NoError(t, err)
	return def
}

func terminalDef(t *testing.T, name string) *agentdef.AgentDefinition {
	t.Helper()
	def, err := agentdef.New(name).
		WithInput(envelope.StreamNameFor(name), passthroughDecoder).
		WithStages(process.Pure("noop", func(v any) (any, error) { return v, nil })).
		WithTerminal(mapEncoder).
		Build()
	require.NoError(t, err)
	return def
}

func TestRunForwardsSuccessToOutputStream(t *testing.T) {
	br := broker.NewInMemoryBroker(5 * time.Millisecond)
	def := nonTerminalDef(t, "preprocessor", "codegen")
	rt := New(def, br, testConfig(), newTestSink(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, br.Publish(context.Background(), envelope.StreamNameFor("preprocessor"),
		envelope.NewNormal("submit", "preprocessor", "trace-1", "conv-1", "hello")))

	require.Eventually(t, func() bool {
		stats, err := br.QueueStats(context.Background(), envelope.StreamNameFor("codegen"))
		return err == nil && stats.PendingCount == 1
	}, time.Second, 5*time.Millisecond)

	delivery, ok, err := br.Consume(context.Background(), envelope.StreamNameFor("codegen"), "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, envelope.PayloadNormal, delivery.Envelope.PayloadType)
	assert.Equal(t, "conv-1", delivery.Envelope.ConversationID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRunWritesTerminalRecordOnSuccess(t *testing.T) {
	br := broker.NewInMemoryBroker(5 * time.Millisecond)
	def := terminalDef(t, "refiner")
	convDir := t.TempDir()
	sink := obslog.NewSink(filepath.Join(convDir, "agent_logs"), convDir)
	rt := New(def, br, testConfig(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, br.Publish(context.Background(), envelope.StreamNameFor("refiner"),
		envelope.NewNormal("explainer", "refiner", "trace-1", "conv-2", "done")))

	require.Eventually(t, func() bool {
		records, err := obslog.Conversation(convDir, "conv-2")
		if err != nil {
			return false
		}
		for _, r := range records {
			if r.Type == "terminal_result" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRunPublishesUpstreamFailureOnPipelineFailure(t *testing.T) {
	br := broker.NewInMemoryBroker(5 * time.Millisecond)
	def, err := agentdef.New("codegen").
		WithInput(envelope.StreamNameFor("codegen"), passthroughDecoder).
		WithStages(process.Pure("fails", func(v any) (any, error) { return nil, errors.New("boom") })).
		WithOutput(envelope.StreamNameFor("explainer"), mapEncoder).
		Build()
	require.NoError(t, err)
	rt := New(def, br, testConfig(), newTestSink(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, br.Publish(context.Background(), envelope.StreamNameFor("codegen"),
		envelope.NewNormal("preprocessor", "codegen", "trace-1", "conv-3", "input")))

	require.Eventually(t, func() bool {
		stats, err := br.QueueStats(context.Background(), envelope.StreamNameFor("explainer"))
		return err == nil && stats.PendingCount == 1
	}, time.Second, 5*time.Millisecond)

	delivery, ok, err := br.Consume(context.Background(), envelope.StreamNameFor("explainer"), "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, envelope.PayloadUpstreamFailure, delivery.Envelope.PayloadType)

	cancel()
	<-done
}

func TestRunPublishesLifecycleEventsToCommBus(t *testing.T) {
	br := broker.NewInMemoryBroker(5 * time.Millisecond)
	def := terminalDef(t, "refiner")
	events := commbus.NewInMemoryCommBus(time.Second)

	var mu sync.Mutex
	var started, completed int
	events.Subscribe("AgentStarted", func(ctx context.Context, msg commbus.Message) (any, error) {
		mu.Lock()
		started++
		mu.Unlock()
		return nil, nil
	})
	events.Subscribe("AgentCompleted", func(ctx context.Context, msg commbus.Message) (any, error) {
		mu.Lock()
		completed++
		mu.Unlock()
		ac := msg.(*commbus.AgentCompleted)
		assert.Equal(t, "Success", ac.Outcome)
		return nil, nil
	})

	rt := New(def, br, testConfig(), newTestSink(t), events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, br.Publish(context.Background(), envelope.StreamNameFor("refiner"),
		envelope.NewNormal("explainer", "refiner", "trace-1", "conv-4", "done")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return started == 1 && completed == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRunStopsWithinDrainTimeoutWhenContextCancelled(t *testing.T) {
	br := broker.NewInMemoryBroker(5 * time.Millisecond)
	def := terminalDef(t, "refiner")
	cfg := testConfig()
	cfg.DrainTimeout = 200 * time.Millisecond
	rt := New(def, br, cfg, newTestSink(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly after cancellation with no in-flight work")
	}
}
