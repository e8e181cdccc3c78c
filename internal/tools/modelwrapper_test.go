package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpipeline/core/coreengine/tools"
)

type stubModelCaller struct {
	response string
	err      error
}

func (s stubModelCaller) Generate(_ context.Context, _ string, _ string, _ map[string]any) (string, error) {
	return s.response, s.err
}

func TestRegisterModelToolRegistersUnderName(t *testing.T) {
	registry := tools.NewToolExecutor()
	require.NoError(t, RegisterModelTool(registry, "model-call", stubModelCaller{response: "ok"}))
	assert.True(t, registry.Has("model-call"))
}

func TestModelToolReturnsResponseAndLatency(t *testing.T) {
	registry := tools.NewToolExecutor()
	require.NoError(t, RegisterModelTool(registry, "model-call", stubModelCaller{response: "generated text"}))

	result, err := registry.Execute(context.Background(), "model-call", map[string]any{
		"prompt": "explain this code",
		"model":  "explainer-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated text", result["response"])
	assert.Contains(t, result, "latency_ms")
}

func TestModelToolRequiresNonEmptyPrompt(t *testing.T) {
	registry := tools.NewToolExecutor()
	require.NoError(t, RegisterModelTool(registry, "model-call", stubModelCaller{response: "ok"}))

	_, err := registry.Execute(context.Background(), "model-call", map[string]any{"prompt": ""})
	assert.Error(t, err)
}

func TestModelToolPropagatesProviderError(t *testing.T) {
	registry := tools.NewToolExecutor()
	require.NoError(t, RegisterModelTool(registry, "model-call", stubModelCaller{err: errors.New("model down")}))

	_, err := registry.Execute(context.Background(), "model-call", map[string]any{"prompt": "hi"})
	assert.EqualError(t, err, "model down")
}
