package preprocessor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/coreengine/envelope"
	"github.com/agentpipeline/core/coreengine/pipectx"
)

func TestBuildProducesValidDefinition(t *testing.T) {
	def, err := Build("agent_codegen_tasks")
	require.NoError(t, err)
	assert.Equal(t, Name, def.Name)
	assert.False(t, def.Terminal)
	assert.Equal(t, "agent_codegen_tasks", def.OutputStream)
}

func TestPipelineTrimsAndPassesThrough(t *testing.T) {
	def, err := Build("agent_codegen_tasks")
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{
		PayloadType: envelope.PayloadNormal,
		Payload:     map[string]any{"request": "  write a function  "},
	})
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), decoded, pipectx.Initial(Name, "trace-1", "conv-1"))
	require.True(t, result.IsSuccess())
	assert.Equal(t, Output{Request: "write a function"}, result.Value())
}

func TestPipelineFailsOnEmptyRequest(t *testing.T) {
	def, err := Build("agent_codegen_tasks")
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{
		PayloadType: envelope.PayloadNormal,
		Payload:     map[string]any{"request": "   "},
	})
	require.NoError(t, err)

	result := def.Pipeline.Invoke(context.Background(), decoded, pipectx.Initial(Name, "trace-1", "conv-1"))
	assert.True(t, result.IsFailure())
}

func TestDecodeFailsOnMissingRequestField(t *testing.T) {
	def, err := Build("agent_codegen_tasks")
	require.NoError(t, err)

	_, err = def.Decoder(envelope.DecodeInput{
		PayloadType: envelope.PayloadNormal,
		Payload:     map[string]any{},
	})
	assert.Error(t, err)
}

func TestDecodePropagatesUpstreamFailureAsPlainText(t *testing.T) {
	def, err := Build("agent_codegen_tasks")
	require.NoError(t, err)

	decoded, err := def.Decoder(envelope.DecodeInput{
		PayloadType: envelope.PayloadUpstreamFailure,
		Payload:     envelope.UpstreamFailurePayload{FromAgent: "submit", Error: "bad"},
	})
	require.NoError(t, err)
	assert.Contains(t, decoded.(string), "submit")
}

func TestEncodeWrapsRequestField(t *testing.T) {
	payload, err := encode(Output{Request: "final text"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"request": "final text"}, payload)
}

func TestEncodeRejectsWrongType(t *testing.T) {
	_, err := encode("not an Output")
	assert.Error(t, err)
}
