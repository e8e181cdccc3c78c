package process

import "context"

// LLMProvider is the blocking model-call collaborator a Model-backed process
// issues its prompt through.
type LLMProvider interface {
	Generate(ctx context.Context, model, prompt string, options map[string]any) (string, error)
}

// ToolExecutor is the collaborator a Tool-backed process invokes.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, params map[string]any) (map[string]any, error)
}

// ModelCallRecorder is the optional collaborator a Model-backed process
// reports every attempt's prompt/response/duration to, distinct from the
// Prometheus counters observability.RecordModelCall always updates: this is
// the auxiliary per-call record a human or cmd/logs reads back afterward. A
// nil recorder is a valid no-op.
type ModelCallRecorder interface {
	RecordModelCall(conversationID, agentName, modelName, prompt, response string, durationMS int64, callErr error)
}
