package process

import (
	"context"

	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/stage"
)

// ToolRequestBuilder converts a stage input into tool call parameters.
type ToolRequestBuilder func(input any, pctx pipectx.PipelineContext) (map[string]any, error)

// ToolResultParser converts a tool's result map into the stage output. It
// also receives the stage's original input, the same generalization
// ResponseParser went through for Model-backed stages, so a parser can carry
// a field of its input forward rather than relying on the result map alone.
// An error return maps the invocation to Failure for the invoking process,
// subject to reflection.
type ToolResultParser func(result map[string]any, input any) (any, error)

// Tool builds a Tool-backed process: build request -> invoke tool -> parse
// result, with reflection applied to the whole sequence.
func Tool(name string, executor ToolExecutor, toolName string, build ToolRequestBuilder, parse ToolResultParser, maxReflections MaxReflections, onFailure OnFailure) stage.Stage {
	body := func(goCtx context.Context, input any, pctx pipectx.PipelineContext) (any, error) {
		params, err := build(input, pctx)
		if err != nil {
			return nil, err
		}

		result, err := executor.Execute(goCtx, toolName, params)
		if err != nil {
			return nil, err
		}
		return parse(result, input)
	}

	return stage.New(name, func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return reflect(goCtx, body, input, pctx, maxReflections, onFailure, nil)
	})
}
