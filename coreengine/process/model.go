package process

import (
	"context"
	"time"

	"github.com/agentpipeline/core/coreengine/observability"
	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/stage"
)

// PromptBuilder turns a stage input plus context into a model prompt.
type PromptBuilder func(input any, pctx pipectx.PipelineContext) (string, error)

// ResponseParser turns the model's raw text response into the stage output.
// It receives the stage's original input alongside the response so it can
// carry fields of the input forward into a combined output value.
type ResponseParser func(response string, input any) (any, error)

// Model builds a Model-backed process: build prompt -> blocking model call ->
// parse response, with reflection applied to the whole build-call-parse
// sequence. Every attempt, successful or not, updates the Prometheus
// counters via observability.RecordModelCall and, if recorder is non-nil,
// writes the auxiliary prompt/response/duration record through recorder.
func Model(name string, provider LLMProvider, modelName string, build PromptBuilder, parse ResponseParser, maxReflections MaxReflections, onFailure OnFailure, recorder ModelCallRecorder) stage.Stage {
	body := func(goCtx context.Context, input any, pctx pipectx.PipelineContext) (any, error) {
		prompt, err := build(input, pctx)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		response, err := provider.Generate(goCtx, modelName, prompt, nil)
		durationMS := time.Since(start).Milliseconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RecordModelCall(pctx.AgentName, modelName, status, durationMS)
		if recorder != nil {
			recorder.RecordModelCall(pctx.ConversationID, pctx.AgentName, modelName, prompt, response, durationMS, err)
		}

		if err != nil {
			return nil, err
		}
		return parse(response, input)
	}

	return stage.New(name, func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return reflect(goCtx, body, input, pctx, maxReflections, onFailure, nil)
	})
}
