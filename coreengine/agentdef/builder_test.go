package agentdef

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/stage"
)

func noopDecoder(envelope.DecodeInput) (any, error) { return nil, nil }
func noopEncoder(any) (any, error)                  { return nil, nil }

func passthroughStage(name string) stage.Stage {
	return stage.New(name, func(_ context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return outcome.Success(input, pctx)
	})
}

func TestBuildMinimalNonTerminalAgent(t *testing.T) {
	def, err := New("codegen").
		WithInput("agent_codegen_tasks", noopDecoder).
		WithStages(passthroughStage("s1")).
		WithOutput("agent_explainer_tasks", noopEncoder).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "codegen", def.Name)
	assert.False(t, def.Terminal)
	assert.Equal(t, "agent_explainer_tasks", def.OutputStream)
}

func TestBuildMinimalTerminalAgent(t *testing.T) {
	def, err := New("refiner").
		WithInput("agent_refiner_tasks", noopDecoder).
		WithStages(passthroughStage("s1")).
		WithTerminal(noopEncoder).
		Build()

	require.NoError(t, err)
	assert.True(t, def.Terminal)
	assert.Empty(t, def.OutputStream)
}

func TestBuildMissingEverythingReportsAllProblems(t *testing.T) {
	_, err := New("").Build()
	require.Error(t, err)

	configErr, ok := err.(*ConfigError)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(configErr.Problems), 3)
}

func TestBuildMissingStagesFails(t *testing.T) {
	_, err := New("agent").
		WithInput("agent_agent_tasks", noopDecoder).
		WithOutput("agent_next_tasks", noopEncoder).
		Build()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one stage")
}

func TestBuildMissingDecoderFails(t *testing.T) {
	b := &Builder{}
	b.name = "agent"
	b.inputStream = "agent_agent_tasks"
	b.stages = []stage.Stage{passthroughStage("s1")}
	b.outputStream = "agent_next_tasks"
	b.encoder = noopEncoder
	b.outputSet = true

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder")
}

func TestBuildCannotBeCalledTwice(t *testing.T) {
	b := New("agent").
		WithInput("agent_agent_tasks", noopDecoder).
		WithStages(passthroughStage("s1")).
		WithTerminal(noopEncoder)

	_, err := b.Build()
	require.NoError(t, err)

	_, err = b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already called")
}

func TestGuardStageAppendedAfterPipeline(t *testing.T) {
	order := []string{}
	record := func(name string) stage.Stage {
		return stage.New(name, func(_ context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
			order = append(order, name)
			return outcome.Success(input, pctx)
		})
	}

	def, err := New("codegen").
		WithInput("agent_codegen_tasks", noopDecoder).
		WithStages(record("generate")).
		WithGuard(record("guard")).
		WithTerminal(noopEncoder).
		Build()
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), "x", pipectx.Initial("codegen", "t", "c"))
	require.True(t, result.IsSuccess())
	assert.Equal(t, []string{"generate", "guard"}, order)
}
