// Package pipectx implements the immutable per-message metadata threaded
// through every stage of an agent's pipeline.
package pipectx

// TerminalState summarizes how a stage ended, for StageLog.
type TerminalState struct {
	Kind    string // "Success", "Failure", "Rejected"
	Message string // error message or rejection reason, empty on Success
}

// StageLog records one stage invocation's timing and terminal state.
type StageLog struct {
	StageName        string
	StageIndex       int
	DurationMS       int64
	ReflectionsUsed  int
	Terminal         TerminalState
}

// PipelineContext is created once at message ingress and threaded, copy on
// write, through every composed stage. It never carries the payload value.
type PipelineContext struct {
	AgentName      string
	TraceID        string
	ConversationID string
	StepIndex      int
	StepLogs       []StageLog
}

// Initial constructs the context for a freshly decoded message.
func Initial(agentName, traceID, conversationID string) PipelineContext {
	return PipelineContext{
		AgentName:      agentName,
		TraceID:        traceID,
		ConversationID: conversationID,
		StepIndex:      0,
		StepLogs:       nil,
	}
}

// NextStep returns a copy with StepIndex incremented. StepLogs is not copied
// deeply here; WithLog is responsible for appending without aliasing the
// caller's backing array.
func (c PipelineContext) NextStep() PipelineContext {
	c.StepIndex++
	return c
}

// WithLog returns a copy with entry appended to StepLogs. Append-only: the
// returned context never shares a mutable backing array with its parent in a
// way that would let a later write to one clobber the other's view, because
// we always allocate a new slice of the exact required length.
func (c PipelineContext) WithLog(entry StageLog) PipelineContext {
	logs := make([]StageLog, len(c.StepLogs), len(c.StepLogs)+1)
	copy(logs, c.StepLogs)
	c.StepLogs = append(logs, entry)
	return c
}
