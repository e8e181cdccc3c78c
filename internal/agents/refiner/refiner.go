// Package refiner implements the fourth and terminal agent in the topology:
// it executes the generated code through the subprocess tool, then asks a
// model to explain the execution result alongside the original explanation.
package refiner

import (
	"context"
	"fmt"

	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/process"
	"github.com/agentpipeline/core/coreengine/typeutil"
	"github.com/agentpipeline/core/internal/registry"
)

const Name = "refiner"

const ModelName = "refiner-model"
const SubprocessToolName = "subprocess-execute"

const executionTimeoutSeconds = 10

// PromptKey is the name this agent's instruction prompt is stored under in
// the prompt registry.
const PromptKey = "refiner_summarize_result"

const defaultInstruction = "Summarize the result of running this code."

// propagatedKey marks the tool stage's result map as carrying an upstream
// failure/rejection's propagated text rather than a real execution result,
// since process.ToolResultParser has no other channel back to buildPrompt
// once the tool stage has run.
const propagatedKey = "__propagated_text"

// Input is what this agent receives from explainer.
type Input struct {
	Request     string
	Code        string
	Explanation string
}

// Build assembles this agent's definition. It is terminal: its encoder is
// used only to shape the value written to the observability sink. prompts
// and recorder are both nil-safe: a nil prompts registry falls back to the
// built-in instruction text, and a nil recorder skips the auxiliary
// model-call record.
func Build(provider process.LLMProvider, executor process.ToolExecutor, prompts registry.PromptRegistry, recorder process.ModelCallRecorder) (*agentdef.AgentDefinition, error) {
	return agentdef.New(Name).
		WithInput(envelope.StreamNameFor(Name), decode).
		WithStages(
			process.Tool("execute-code", executor, SubprocessToolName, buildToolRequest, parseToolResult, 0, nil),
			process.Model("summarize-result", provider, ModelName, buildPrompt(prompts), parseResponse, 1, nil, recorder),
		).
		WithTerminal(encode).
		Build()
}

var decode = agentdef.WithPropagation(func(payload any) (any, error) {
	m, ok := typeutil.SafeMapStringAny(payload)
	if !ok {
		return nil, fmt.Errorf("expected an object payload, got %T", payload)
	}
	request, ok := typeutil.GetNestedString(m, "request")
	if !ok {
		return nil, fmt.Errorf("payload missing required field %q", "request")
	}
	code, ok := typeutil.GetNestedString(m, "code")
	if !ok {
		return nil, fmt.Errorf("payload missing required field %q", "code")
	}
	explanation, ok := typeutil.GetNestedString(m, "explanation")
	if !ok {
		return nil, fmt.Errorf("payload missing required field %q", "explanation")
	}
	return Input{Request: request, Code: code, Explanation: explanation}, nil
})

// buildToolRequest runs a no-op in place of the generated code when input is
// an upstream failure/rejection's propagated text (a string rather than this
// agent's own Input shape): execution is skipped, but a Tool-backed stage
// still has to issue some request.
func buildToolRequest(input any, _ pipectx.PipelineContext) (map[string]any, error) {
	if _, ok := input.(string); ok {
		return map[string]any{"code": "pass", "timeout_seconds": executionTimeoutSeconds}, nil
	}

	in, ok := input.(Input)
	if !ok {
		return nil, fmt.Errorf("refiner: unexpected input type %T", input)
	}
	return map[string]any{"code": in.Code, "timeout_seconds": executionTimeoutSeconds}, nil
}

func parseToolResult(result map[string]any, input any) (any, error) {
	if text, ok := input.(string); ok {
		return map[string]any{propagatedKey: text}, nil
	}
	return result, nil
}

// buildPrompt closes over prompts so the instruction text can be resolved
// from the registry per call while keeping PromptBuilder's fixed signature.
func buildPrompt(prompts registry.PromptRegistry) process.PromptBuilder {
	return func(input any, _ pipectx.PipelineContext) (string, error) {
		result, ok := input.(map[string]any)
		if !ok {
			return "", fmt.Errorf("refiner: unexpected input type %T", input)
		}
		if text, ok := result[propagatedKey].(string); ok {
			return "Relay the following upstream issue back to the user in one sentence: " + text, nil
		}

		instruction := defaultInstruction
		if prompts != nil {
			if content, err := prompts.Get(context.Background(), PromptKey, nil); err == nil {
				instruction = content
			}
		}
		stdout := typeutil.SafeStringDefault(result["stdout"], "")
		stderr := typeutil.SafeStringDefault(result["stderr"], "")
		exitCode := typeutil.SafeIntDefault(result["exit_code"], -1)
		return fmt.Sprintf("%s Exit code: %d\nStdout:\n%s\nStderr:\n%s", instruction, exitCode, stdout, stderr), nil
	}
}

func parseResponse(response string, input any) (any, error) {
	if result, ok := input.(map[string]any); ok {
		if text, ok := result[propagatedKey].(string); ok {
			return text, nil
		}
	}
	return response, nil
}

func encode(value any) (any, error) {
	summary, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("refiner: unexpected output type %T", value)
	}
	return map[string]any{"summary": summary}, nil
}
