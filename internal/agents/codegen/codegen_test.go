package codegen

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/internal/modelclient"
	"github.com/agentpipeline/core/internal/registry"
)

func TestBuildProducesValidDefinition(t *testing.T) {
	provider := &modelclient.DeterministicProvider{}
	def, err := Build("agent_explainer_tasks", provider, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Name, def.Name)
	assert.Equal(t, "agent_explainer_tasks", def.OutputStream)
}

func TestPipelineGeneratesCodeWhenNoGuardrailsBlock(t *testing.T) {
	provider := &modelclient.DeterministicProvider{
		Responder: func(model, prompt string) (string, error) { return "print('hi')", nil },
	}
	def, err := Build("agent_explainer_tasks", provider, []registry.Guardrail{
		{Name: "no-harm", CheckPrompt: "is this harmful?"},
	}, nil, nil)
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{PayloadType: envelope.PayloadNormal, Payload: map[string]any{"request": "print hi"}})
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), decoded, pipectx.Initial(Name, "trace-1", "conv-1"))
	require.True(t, result.IsSuccess())
	out := result.Value().(Output)
	assert.Equal(t, "print hi", out.Request)
	assert.Equal(t, "print('hi')", out.Code)
}

func TestGuardBlocksWhenEvaluatorAnswersYes(t *testing.T) {
	provider := &modelclient.DeterministicProvider{
		Responder: func(model, prompt string) (string, error) {
			if strings.HasPrefix(prompt, "is this harmful?") {
				return "yes, this is harmful", nil
			}
			return "print('hi')", nil
		},
	}
	def, err := Build("agent_explainer_tasks", provider, []registry.Guardrail{
		{Name: "no-harm", CheckPrompt: "is this harmful?"},
	}, nil, nil)
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{PayloadType: envelope.PayloadNormal, Payload: map[string]any{"request": "do something bad"}})
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), decoded, pipectx.Initial(Name, "trace-1", "conv-1"))
	require.True(t, result.IsRejected())
	assert.Equal(t, "no-harm", result.PolicyName())
}

func TestEvaluatorBuildsSubjectFromOutput(t *testing.T) {
	evaluator := ModelGuardrailEvaluator{
		Provider: &modelclient.DeterministicProvider{
			Responder: func(model, prompt string) (string, error) {
				assert.Contains(t, prompt, "the request")
				assert.Contains(t, prompt, "some code")
				return "no", nil
			},
		},
		ModelName: ModelName,
	}
	blocked, _, err := evaluator.Evaluate(context.Background(), "check", Output{Request: "the request", Code: "some code"})
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestEncodeWrapsRequestAndCode(t *testing.T) {
	payload, err := encode(Output{Request: "r", Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"request": "r", "code": "c"}, payload)
}

func TestBuildPromptUsesRegistryInstructionWhenAvailable(t *testing.T) {
	prompts := stubPromptRegistry{content: "Write Go instead of Python."}
	prompt, err := buildPrompt(prompts)("print hi", pipectx.Initial(Name, "t", "c"))
	require.NoError(t, err)
	assert.Contains(t, prompt, "Write Go instead of Python.")
}

func TestBuildPromptFallsBackWhenRegistryIsNil(t *testing.T) {
	prompt, err := buildPrompt(nil)("print hi", pipectx.Initial(Name, "t", "c"))
	require.NoError(t, err)
	assert.Contains(t, prompt, defaultInstruction)
}

type stubRecorder struct {
	calls int
}

func (r *stubRecorder) RecordModelCall(_, _, _, _, _ string, _ int64, _ error) {
	r.calls++
}

func TestBuildWiresRecorderIntoModelCalls(t *testing.T) {
	recorder := &stubRecorder{}
	provider := &modelclient.DeterministicProvider{
		Responder: func(model, prompt string) (string, error) { return "print('hi')", nil },
	}
	def, err := Build("agent_explainer_tasks", provider, nil, nil, recorder)
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{PayloadType: envelope.PayloadNormal, Payload: map[string]any{"request": "print hi"}})
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), decoded, pipectx.Initial(Name, "trace-1", "conv-1"))
	require.True(t, result.IsSuccess())
	assert.Equal(t, 1, recorder.calls)
}

type stubPromptRegistry struct {
	content string
	err     error
}

func (s stubPromptRegistry) Get(_ context.Context, _ string, _ map[string]any) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}
