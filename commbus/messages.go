// Package commbus provides in-process event definitions used by the agent
// runtime to announce lifecycle events to local subscribers (observability
// sinks, metrics, tracing). This is distinct from the broker package, which
// carries envelopes between agent processes.
//
// Categories:
//   - EVENT: Fire-and-forget, fan-out to subscribers
//   - QUERY: Request-response, single handler
//   - COMMAND: Fire-and-forget, single handler
package commbus

// =============================================================================
// MESSAGE CATEGORIES
// =============================================================================

// MessageCategory represents message routing categories.
type MessageCategory string

const (
	// MessageCategoryEvent represents fire-and-forget, fan-out to all subscribers.
	MessageCategoryEvent MessageCategory = "event"
	// MessageCategoryQuery represents request-response, single handler.
	MessageCategoryQuery MessageCategory = "query"
	// MessageCategoryCommand represents fire-and-forget, single handler.
	MessageCategoryCommand MessageCategory = "command"
)

// HealthStatus represents canonical health status values.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// =============================================================================
// AGENT LIFECYCLE EVENTS
// =============================================================================

// AgentStarted is emitted when an agent begins processing a message.
// Subscribers: observability sinks, metrics.
type AgentStarted struct {
	AgentName      string `json:"agent_name"`
	ConversationID string `json:"conversation_id"`
	TraceID        string `json:"trace_id"`
}

func (m *AgentStarted) Category() string { return string(MessageCategoryEvent) }

// AgentCompleted is emitted when an agent finishes processing a message.
type AgentCompleted struct {
	AgentName      string  `json:"agent_name"`
	ConversationID string  `json:"conversation_id"`
	TraceID        string  `json:"trace_id"`
	Outcome        string  `json:"outcome"` // "Success", "Failure", "Rejected"
	DurationMS     int     `json:"duration_ms"`
	Error          *string `json:"error,omitempty"`
}

func (m *AgentCompleted) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// TOOL EXECUTION EVENTS
// =============================================================================

// ToolStarted is emitted when a tool-backed stage begins executing.
type ToolStarted struct {
	ToolName       string `json:"tool_name"`
	AgentName      string `json:"agent_name"`
	ConversationID string `json:"conversation_id"`
}

func (m *ToolStarted) Category() string { return string(MessageCategoryEvent) }

// ToolCompleted is emitted when a tool-backed stage finishes executing.
type ToolCompleted struct {
	ToolName        string  `json:"tool_name"`
	AgentName       string  `json:"agent_name"`
	ConversationID  string  `json:"conversation_id"`
	Status          string  `json:"status"` // "success", "error", "timeout"
	ExecutionTimeMS int     `json:"execution_time_ms"`
	Error           *string `json:"error,omitempty"`
}

func (m *ToolCompleted) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// CONVERSATION LIFECYCLE EVENTS
// =============================================================================

// ConversationStarted is emitted when a new conversation enters the pipeline.
type ConversationStarted struct {
	ConversationID string `json:"conversation_id"`
	TraceID        string `json:"trace_id"`
	EntryAgent     string `json:"entry_agent"`
}

func (m *ConversationStarted) Category() string { return string(MessageCategoryEvent) }

// ConversationCompleted is emitted when a conversation reaches a terminal agent.
type ConversationCompleted struct {
	ConversationID string  `json:"conversation_id"`
	TraceID        string  `json:"trace_id"`
	FinalAgent     string  `json:"final_agent"`
	Status         string  `json:"status"` // "completed", "failed", "rejected"
	Error          *string `json:"error,omitempty"`
}

func (m *ConversationCompleted) Category() string { return string(MessageCategoryEvent) }

// =============================================================================
// REGISTRY QUERIES
// =============================================================================

// GetPrompt queries a prompt template by name and version.
type GetPrompt struct {
	Name    string `json:"name"`
	Version int    `json:"version"` // 0 = latest enabled version
}

func (m *GetPrompt) Category() string { return string(MessageCategoryQuery) }
func (m *GetPrompt) IsQuery()         {}

// PromptResponse is the response for GetPrompt.
type PromptResponse struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Content string `json:"content"`
	Found   bool   `json:"found"`
}

// ListPrompts queries the names of available prompts.
type ListPrompts struct{}

func (m *ListPrompts) Category() string { return string(MessageCategoryQuery) }
func (m *ListPrompts) IsQuery()         {}

// ListPromptsResponse is the response for ListPrompts.
type ListPromptsResponse struct {
	Names []string `json:"names"`
}

// =============================================================================
// HEALTH CHECK EVENTS
// =============================================================================

// HealthCheckRequest requests health status from a component.
type HealthCheckRequest struct {
	Component string `json:"component"` // "broker", "registry", "model"
}

func (m *HealthCheckRequest) Category() string { return string(MessageCategoryQuery) }
func (m *HealthCheckRequest) IsQuery()         {}

// HealthCheckResponse is the response for HealthCheckRequest.
type HealthCheckResponse struct {
	Component string         `json:"component"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// TypedMessage is an optional interface for messages that can provide their own type name.
type TypedMessage interface {
	Message
	MessageType() string
}

// GetMessageType returns the type name of a message for routing.
func GetMessageType(msg Message) string {
	if typed, ok := msg.(TypedMessage); ok {
		return typed.MessageType()
	}

	switch msg.(type) {
	case *AgentStarted:
		return "AgentStarted"
	case *AgentCompleted:
		return "AgentCompleted"
	case *ToolStarted:
		return "ToolStarted"
	case *ToolCompleted:
		return "ToolCompleted"
	case *ConversationStarted:
		return "ConversationStarted"
	case *ConversationCompleted:
		return "ConversationCompleted"
	case *GetPrompt:
		return "GetPrompt"
	case *ListPrompts:
		return "ListPrompts"
	case *HealthCheckRequest:
		return "HealthCheckRequest"
	default:
		return "Unknown"
	}
}
