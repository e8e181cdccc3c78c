// Package codegen implements the second agent in the topology: a
// Model-backed code generator guarded by the code-execution guardrail
// pipeline seeded in internal/registry.
package codegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/process"
	"github.com/agentpipeline/core/coreengine/typeutil"
	"github.com/agentpipeline/core/internal/registry"
)

const Name = "codegen"

const ModelName = "codegen-model"

// PromptKey is the name this agent's instruction prompt is stored under in
// the prompt registry; used by both Build's default lookup and cmd/prompts
// seeding.
const PromptKey = "codegen_generate_code"

const defaultInstruction = "Write Python code that accomplishes the following request. Respond with code only."

// Output is what this agent hands to explainer: the original request
// alongside the code the model produced for it.
type Output struct {
	Request string
	Code    string
}

// ModelGuardrailEvaluator evaluates a guardrail's check prompt against the
// in-flight value by delegating to a model provider, parsing a yes/no-style
// response. It implements process.GuardrailEvaluator.
type ModelGuardrailEvaluator struct {
	Provider  process.LLMProvider
	ModelName string
}

func (e ModelGuardrailEvaluator) Evaluate(goCtx context.Context, checkPrompt string, input any) (bool, string, error) {
	subject := ""
	if out, ok := input.(Output); ok {
		subject = fmt.Sprintf("Request: %s\nGenerated code:\n%s", out.Request, out.Code)
	} else {
		subject = fmt.Sprintf("%v", input)
	}

	response, err := e.Provider.Generate(goCtx, e.ModelName, checkPrompt+"\n\n"+subject, nil)
	if err != nil {
		return false, "", err
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(response)), "yes") {
		return true, "guardrail check answered yes: " + checkPrompt, nil
	}
	return false, "", nil
}

// Build assembles this agent's definition. guardrails is normally the
// enabled set returned by a registry.GuardrailRegistry.GuardrailsFor call
// against the "code-execution" pipeline, threaded explicitly so tests can
// supply a fixed set without touching SQLite. prompts and recorder are both
// nil-safe: a nil prompts registry falls back to the built-in instruction
// text, and a nil recorder skips the auxiliary model-call record.
func Build(explainerStream string, provider process.LLMProvider, guardrails []registry.Guardrail, prompts registry.PromptRegistry, recorder process.ModelCallRecorder) (*agentdef.AgentDefinition, error) {
	checks := make([]process.GuardrailCheck, 0, len(guardrails))
	for _, g := range guardrails {
		checks = append(checks, process.GuardrailCheck{PolicyName: g.Name, CheckPrompt: g.CheckPrompt})
	}

	builder := agentdef.New(Name).
		WithInput(envelope.StreamNameFor(Name), decode).
		WithStages(
			process.Model("generate-code", provider, ModelName, buildPrompt(prompts), parseResponse, 2, nil, recorder),
		).
		WithOutput(explainerStream, encode).
		WithGuard(process.Guard("guardrail-check", checks, ModelGuardrailEvaluator{Provider: provider, ModelName: ModelName}))

	return builder.Build()
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
	return request, nil
})

// buildPrompt closes over prompts so the instruction text can be resolved
// from the registry per call while keeping PromptBuilder's fixed signature.
func buildPrompt(prompts registry.PromptRegistry) process.PromptBuilder {
	return func(input any, _ pipectx.PipelineContext) (string, error) {
		request, _ := input.(string)
		instruction := defaultInstruction
		if prompts != nil {
			if content, err := prompts.Get(context.Background(), PromptKey, nil); err == nil {
				instruction = content
			}
		}
		return instruction + "\n\nRequest: " + request, nil
	}
}

func parseResponse(response string, input any) (any, error) {
	request, _ := input.(string)
	return Output{Request: request, Code: response}, nil
}

func encode(value any) (any, error) {
	out, ok := value.(Output)
	if !ok {
		return nil, fmt.Errorf("codegen: unexpected output type %T", value)
	}
	return map[string]any{"request": out.Request, "code": out.Code}, nil
}
