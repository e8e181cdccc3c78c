// Package stage implements the Kleisli-style composable unit every agent
// pipeline is built from: a named function (A, ctx) -> Outcome<B>, wrapped
// with ambient logging, tracing, and metrics so stage authors never opt in
// to observability themselves.
package stage

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/agentpipeline/core/coreengine/observability"
	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
)

var tracer = otel.Tracer("agentpipeline/stage")

// Run is the bare, unwrapped body of a stage: given a payload and the
// current pipeline context, produce an Outcome. Implementations must never
// panic to signal a domain fault — encode it as Failure instead. The runtime
// still recovers at the per-message goroutine root as a last resort (see
// coreengine/runtime).
type Run func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome

// Stage is a named pipeline unit. Its Invoke method is already wrapped with
// logging/tracing/metrics at construction time; composing stages with Then
// never adds a second layer of observability for the composite.
type Stage struct {
	Name   string
	Invoke Run
}

// New wraps a bare Run body into a named Stage with ambient observability:
// one OpenTelemetry span, one Prometheus observation, and one appended
// StageLog per invocation.
func New(name string, run Run) Stage {
	return Stage{Name: name, Invoke: wrapObservability(name, run)}
}

// wrapObservability advances stepIndex once per leaf-stage invocation,
// unconditionally, before running the stage body. This is what makes
// stepIndex equal the number of stages actually executed regardless of how
// a pipeline built from Then/Chain happens to associate: the increment
// lives on the leaf, not on the composition operator.
func wrapObservability(name string, run Run) Run {
	return func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		pctx = pctx.NextStep()

		goCtx, span := tracer.Start(goCtx, "stage."+name)
		defer span.End()

		start := time.Now()
		log.Printf("stage %s: starting (agent=%s conversation=%s step=%d)", name, pctx.AgentName, pctx.ConversationID, pctx.StepIndex)

		result := run(goCtx, input, pctx)

		durationMS := time.Since(start).Milliseconds()
		terminal := pipectx.TerminalState{Kind: result.Kind().String()}
		switch result.Kind() {
		case outcome.KindFailure:
			terminal.Message = result.Error()
		case outcome.KindRejected:
			terminal.Message = result.Reason()
		}

		loggedCtx := result.Context().WithLog(pipectx.StageLog{
			StageName:  name,
			StageIndex: pctx.StepIndex,
			DurationMS: durationMS,
			Terminal:   terminal,
		})
		result = result.WithContext(loggedCtx)

		observability.RecordStageExecution(pctx.AgentName, name, terminal.Kind, durationMS)
		log.Printf("stage %s: %s in %dms (agent=%s conversation=%s)", name, terminal.Kind, durationMS, pctx.AgentName, pctx.ConversationID)

		return result
	}
}

// Identity returns a pass-through stage: Success(input, ctx) unconditionally.
func Identity(name string) Stage {
	return New(name, func(_ context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return outcome.Success(input, pctx)
	})
}

// Map returns a stage that transforms the Success payload with f, leaving
// Failure and Rejected untouched.
func Map(name string, f func(any) any) Stage {
	return New(name, func(_ context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return outcome.Success(input, pctx).Map(f)
	})
}

// Then composes two already-observable stages left to right: s1 runs first;
// s2 runs only on s1's Success, against a context advanced one step.
// Short-circuiting on Failure/Rejected means s2 is never invoked and the
// outcome returned is s1's, unchanged. The composite itself is not wrapped
// with a second layer of logging/tracing — each component already logged
// its own StageLog, and stepLogs length after a full run equals the number
// of leaf stages actually executed, not the number of composition calls.
func Then(s1, s2 Stage) Stage {
	return Stage{
		Name: s1.Name + ">" + s2.Name,
		Invoke: func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
			o1 := s1.Invoke(goCtx, input, pctx)
			if !o1.IsSuccess() {
				return o1
			}
			return s2.Invoke(goCtx, o1.Value(), o1.Context())
		},
	}
}

// Chain composes a slice of stages left to right using Then. Panics if
// stages is empty; the Agent Builder enforces at least one stage before
// calling this.
func Chain(stages ...Stage) Stage {
	result := stages[0]
	for _, s := range stages[1:] {
		result = Then(result, s)
	}
	return result
}
