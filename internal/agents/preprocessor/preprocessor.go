// Package preprocessor implements the first agent in the code-generation
// topology: normalizes and validates the raw submitted request before it
// reaches the model-backed codegen agent. Pure/Effect stages only; no
// model or tool call belongs this early in the pipeline.
package preprocessor

import (
	"fmt"
	"strings"

	"github.com/agentpipeline/core/coreengine/agentdef"
	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/process"
	"github.com/agentpipeline/core/coreengine/typeutil"
)

const Name = "preprocessor"

// Output is what this agent hands to codegen: the normalized request text.
type Output struct {
	Request string
}

// Build assembles this agent's definition. codegenStream is normally
// envelope.StreamNameFor("codegen") but is threaded explicitly rather than
// hardcoded, so tests can point it elsewhere.
func Build(codegenStream string) (*agentdef.AgentDefinition, error) {
	return agentdef.New(Name).
		WithInput(envelope.StreamNameFor(Name), decode).
		WithStages(
			process.Pure("trim-whitespace", trimWhitespace),
			process.Pure("require-non-empty", requireNonEmpty),
		).
		WithOutput(codegenStream, encode).
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
	return request, nil
})

func trimWhitespace(input any) (any, error) {
	text, _ := input.(string)
	return strings.TrimSpace(text), nil
}

func requireNonEmpty(input any) (any, error) {
	text, _ := input.(string)
	if text == "" {
		return nil, fmt.Errorf("request must not be empty after trimming")
	}
	return Output{Request: text}, nil
}

func encode(value any) (any, error) {
	out, ok := value.(Output)
	if !ok {
		return nil, fmt.Errorf("preprocessor: unexpected output type %T", value)
	}
	return map[string]any{"request": out.Request}, nil
}
