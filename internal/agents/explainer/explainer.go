// Package explainer implements the third agent in the topology: a
// Model-backed stage that produces a plain-language explanation of the code
// codegen generated.
package explainer

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

const Name = "explainer"

const ModelName = "explainer-model"

// PromptKey is the name this agent's instruction prompt is stored under in
// the prompt registry.
const PromptKey = "explainer_explain_code"

const defaultInstruction = "Explain in plain language what the following code does."

// Input is what this agent receives from codegen.
type Input struct {
	Request string
	Code    string
}

// Output is what this agent hands to refiner.
type Output struct {
	Request     string
	Code        string
	Explanation string
}

// Build assembles this agent's definition. prompts and recorder are both
// nil-safe: a nil prompts registry falls back to the built-in instruction
// text, and a nil recorder skips the auxiliary model-call record.
func Build(refinerStream string, provider process.LLMProvider, prompts registry.PromptRegistry, recorder process.ModelCallRecorder) (*agentdef.AgentDefinition, error) {
	return agentdef.New(Name).
		WithInput(envelope.StreamNameFor(Name), decode).
		WithStages(
			process.Model("explain-code", provider, ModelName, buildPrompt(prompts), parseResponse, 1, nil, recorder),
		).
		WithOutput(refinerStream, encode).
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
	return Input{Request: request, Code: code}, nil
})

// buildPrompt closes over prompts so the instruction text can be resolved
// from the registry per call while keeping PromptBuilder's fixed signature.
// A string input is an upstream failure/rejection WithPropagation projected
// into plain text rather than this agent's own Input shape; it gets a
// relay prompt instead of failing the type assertion.
func buildPrompt(prompts registry.PromptRegistry) process.PromptBuilder {
	return func(input any, _ pipectx.PipelineContext) (string, error) {
		if text, ok := input.(string); ok {
			return "Relay the following upstream issue back to the user in one sentence: " + text, nil
		}

		in, ok := input.(Input)
		if !ok {
			return "", fmt.Errorf("explainer: unexpected input type %T", input)
		}

		instruction := defaultInstruction
		if prompts != nil {
			if content, err := prompts.Get(context.Background(), PromptKey, nil); err == nil {
				instruction = content
			}
		}
		return instruction + "\n\nRequest: " + in.Request + "\n\nCode:\n" + in.Code, nil
	}
}

func parseResponse(response string, input any) (any, error) {
	if text, ok := input.(string); ok {
		return Output{Request: text, Explanation: text}, nil
	}
	in, _ := input.(Input)
	return Output{Request: in.Request, Code: in.Code, Explanation: response}, nil
}

func encode(value any) (any, error) {
	out, ok := value.(Output)
	if !ok {
		return nil, fmt.Errorf("explainer: unexpected output type %T", value)
	}
	return map[string]any{"request": out.Request, "code": out.Code, "explanation": out.Explanation}, nil
}
