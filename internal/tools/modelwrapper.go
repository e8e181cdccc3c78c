package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/agentpipeline/core/coreengine/tools"
)

// ModelCaller is the minimal collaborator the model-wrapper tool needs;
// satisfied by internal/modelclient.Provider.
type ModelCaller interface {
	Generate(ctx context.Context, model, prompt string, options map[string]any) (string, error)
}

// RegisterModelTool registers the model-wrapper tool under name on registry,
// letting Tool-backed processes reach a model provider through the same
// ToolRegistry dispatch path as the subprocess tool. Input: {"prompt":
// string, "model": string}. Output: {"response": string, "latency_ms": int64}.
func RegisterModelTool(registry tools.ToolRegistry, name string, provider ModelCaller) error {
	return registry.Register(&tools.ToolDefinition{
		Name:        name,
		Description: "Wraps a blocking model call as a tool invocation",
		Category:    "model",
		RiskLevel:   "low",
		Handler: func(ctx context.Context, params map[string]any) (map[string]any, error) {
			prompt, _ := params["prompt"].(string)
			model, _ := params["model"].(string)
			if prompt == "" {
				return nil, fmt.Errorf("model tool requires a non-empty prompt")
			}

			start := time.Now()
			response, err := provider.Generate(ctx, model, prompt, nil)
			latencyMS := time.Since(start).Milliseconds()
			if err != nil {
				return nil, err
			}

			return map[string]any{
				"response":   response,
				"latency_ms": latencyMS,
			}, nil
		},
	})
}
