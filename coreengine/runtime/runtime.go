// Package runtime implements the Agent Runtime: one long-running broker
// consumer loop per agent, with per-message concurrency bounded by a
// goroutine pool sized to the broker prefetch.
package runtime

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/agentpipeline/core/commbus"
	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/observability"
	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/pipelineerrors"
	"github.com/agentpipeline/core/internal/broker"
	"github.com/agentpipeline/core/internal/obslog"
)

var tracer = otel.Tracer("agentpipeline/runtime")

// Runtime owns one agent's consume loop.
type Runtime struct {
	def      *agentdef.AgentDefinition
	broker   broker.Broker
	cfg      Config
	sink     *obslog.Sink
	events   commbus.CommBus
	workerID string
}

// New constructs a Runtime for def, using br as the broker transport and cfg
// for connection/concurrency/observability settings. Lifecycle events
// (AgentStarted/AgentCompleted) fan out on events if non-nil; a nil events
// bus is a valid no-op, so tests and single-agent demos need not wire one up.
func New(def *agentdef.AgentDefinition, br broker.Broker, cfg Config, sink *obslog.Sink, events commbus.CommBus) *Runtime {
	return &Runtime{def: def, broker: br, cfg: cfg, sink: sink, events: events, workerID: def.Name + "-worker"}
}

// Run connects to the broker with bounded retries, declares the input/output
// streams, then consumes until ctx is cancelled. In-flight messages are
// allowed to finish, bounded by cfg.DrainTimeout, before Run returns.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.connectWithRetry(ctx); err != nil {
		return err
	}

	sem := make(chan struct{}, max(1, r.cfg.Prefetch))
	var wg sync.WaitGroup

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		delivery, ok, err := r.broker.Consume(ctx, r.def.InputStream, r.workerID)
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			log.Printf("runtime %s: consume error: %v", r.def.Name, err)
			continue
		}
		if !ok {
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(d *broker.Delivery) {
			defer wg.Done()
			defer func() { <-sem }()
			r.handle(ctx, d)
		}(delivery)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.DrainTimeout):
		log.Printf("runtime %s: drain timeout exceeded, returning with tasks still in flight", r.def.Name)
	}
	return r.broker.Close()
}

func (r *Runtime) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.BrokerConnectRetries; attempt++ {
		if err := r.broker.EnsureStream(ctx, r.def.InputStream); err != nil {
			lastErr = err
		} else if r.def.OutputStream != "" {
			lastErr = r.broker.EnsureStream(ctx, r.def.OutputStream)
		} else {
			lastErr = nil
		}

		if lastErr == nil {
			return nil
		}
		time.Sleep(r.cfg.BrokerConnectRetrySpacing)
	}
	return fmt.Errorf("runtime %s: failed to connect to broker after %d attempts: %w", r.def.Name, r.cfg.BrokerConnectRetries+1, lastErr)
}

// handle runs one message's full pipeline to completion. A deferred
// recover() at this goroutine root catches any stage that panics instead of
// encoding its fault as Failure: the message is still nacked and the
// consumer loop keeps running.
func (r *Runtime) handle(goCtx context.Context, delivery *broker.Delivery) {
	goCtx, span := tracer.Start(goCtx, "agent."+r.def.Name+".process")
	defer span.End()

	env := delivery.Envelope

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("runtime %s: recovered panic handling conversation %s: %v", r.def.Name, env.ConversationID, rec)
			_ = r.broker.Nack(goCtx, delivery.DeliveryID, false)
		}
	}()

	pctx := pipectx.Initial(r.def.Name, env.TraceID, env.ConversationID)
	started := time.Now()

	r.publishEvent(goCtx, &commbus.AgentStarted{
		AgentName:      r.def.Name,
		ConversationID: env.ConversationID,
		TraceID:        env.TraceID,
	})

	decoded, err := r.def.Decoder(envelope.DecodeInput{PayloadType: env.PayloadType, Payload: env.Payload})
	var result outcome.Outcome
	if err != nil {
		decodeErr := &pipelineerrors.StageError{StageName: "decode", Message: "failed to decode input", Cause: err}
		log.Printf("runtime %s: %s", r.def.Name, decodeErr.Error())
		result = outcome.Failure("Failed to decode input: "+err.Error(), pctx)
	} else {
		result = r.def.Pipeline.Invoke(goCtx, decoded, pctx)
	}

	r.logSummary(env, result)
	observability.RecordMessage(r.def.Name, result.Kind().String())
	r.publishEvent(goCtx, agentCompletedEvent(r.def.Name, env, result, time.Since(started)))

	if !r.def.Terminal {
		if err := r.forward(goCtx, env, result); err != nil {
			publishErr := &pipelineerrors.InfrastructureError{Component: "broker", Message: "publish failed for conversation " + env.ConversationID, Cause: err}
			log.Printf("runtime %s: %s", r.def.Name, publishErr.Error())
			_ = r.broker.Nack(goCtx, delivery.DeliveryID, false)
			return
		}
	} else {
		r.writeTerminal(env, result)
	}

	_ = r.broker.Ack(goCtx, delivery.DeliveryID)
}

func (r *Runtime) forward(goCtx context.Context, inbound envelope.Envelope, result outcome.Outcome) error {
	toAgent, _ := envelope.AgentNameFromStream(r.def.OutputStream)

	var out envelope.Envelope
	switch result.Kind() {
	case outcome.KindSuccess:
		payload, err := r.def.Encoder(result.Value())
		if err != nil {
			return fmt.Errorf("encode success payload: %w", err)
		}
		out = envelope.NewNormal(r.def.Name, toAgent, inbound.TraceID, inbound.ConversationID, payload)
	case outcome.KindFailure:
		out = envelope.NewUpstreamFailure(r.def.Name, toAgent, inbound.TraceID, inbound.ConversationID, result.Error())
	case outcome.KindRejected:
		out = envelope.NewUpstreamRejection(r.def.Name, toAgent, inbound.TraceID, inbound.ConversationID, result.PolicyName(), result.Reason())
	}

	return r.broker.Publish(goCtx, r.def.OutputStream, out)
}

func (r *Runtime) writeTerminal(env envelope.Envelope, result outcome.Outcome) {
	rec := obslog.Record{
		Type:           "terminal_result",
		ConversationID: env.ConversationID,
		AgentName:      r.def.Name,
		Source:         obslog.SourceAgent,
		Level:          obslog.LevelInfo,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	switch result.Kind() {
	case outcome.KindSuccess:
		payload, err := r.def.Encoder(result.Value())
		if err != nil {
			rec.Level = obslog.LevelError
			rec.Message = fmt.Sprintf("SUCCESS but failed to encode for observability: %v", err)
		} else {
			rec.Message = fmt.Sprintf("SUCCESS: %v", payload)
		}
	case outcome.KindFailure:
		rec.Level = obslog.LevelError
		rec.Message = "FAILED: " + result.Error()
	case outcome.KindRejected:
		rec.Level = obslog.LevelError
		rec.Message = fmt.Sprintf("REJECTED by %s: %s", result.PolicyName(), result.Reason())
	}

	r.sink.Write(rec)
}

func (r *Runtime) logSummary(env envelope.Envelope, result outcome.Outcome) {
	for _, sl := range result.Context().StepLogs {
		r.sink.Write(obslog.Record{
			Type:           "stage_log",
			ConversationID: env.ConversationID,
			AgentName:      r.def.Name,
			Source:         obslog.SourceAgent,
			Level:          obslog.LevelInfo,
			Message:        fmt.Sprintf("stage=%s index=%d duration_ms=%d outcome=%s", sl.StageName, sl.StageIndex, sl.DurationMS, sl.Terminal.Kind),
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		})
	}

	r.sink.Write(obslog.Record{
		Type:           "message_summary",
		ConversationID: env.ConversationID,
		AgentName:      r.def.Name,
		Source:         obslog.SourceAgent,
		Level:          obslog.LevelInfo,
		Message:        fmt.Sprintf("outcome=%s steps=%d", result.Kind(), len(result.Context().StepLogs)),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

// publishEvent fans event out to r.events if one is configured. Publish
// failures are logged, never propagated: a lost lifecycle event must not
// turn into a pipeline failure.
func (r *Runtime) publishEvent(ctx context.Context, event commbus.Message) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, event); err != nil {
		log.Printf("runtime %s: publish event %s failed: %v", r.def.Name, commbus.GetMessageType(event), err)
	}
}

func agentCompletedEvent(agentName string, env envelope.Envelope, result outcome.Outcome, elapsed time.Duration) *commbus.AgentCompleted {
	completed := &commbus.AgentCompleted{
		AgentName:      agentName,
		ConversationID: env.ConversationID,
		TraceID:        env.TraceID,
		Outcome:        result.Kind().String(),
		DurationMS:     int(elapsed.Milliseconds()),
	}
	if result.IsFailure() {
		errMsg := result.Error()
		completed.Error = &errMsg
	} else if result.IsRejected() {
		reason := result.Reason()
		completed.Error = &reason
	}
	return completed
}
