// Package envelope implements the wire format for inter-agent messages: a
// JSON object carrying routing metadata plus a typed payload discriminator.
// Decode-time field extraction reuses coreengine/typeutil's Safe* helpers
// instead of reinventing comma-ok coercion.
package envelope

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/agentpipeline/core/coreengine/typeutil"
)

// PayloadType discriminates the three envelope payload shapes.
type PayloadType string

const (
	PayloadNormal            PayloadType = "Normal"
	PayloadUpstreamFailure   PayloadType = "UpstreamFailure"
	PayloadUpstreamRejection PayloadType = "UpstreamRejection"
)

// Envelope is the wire record exchanged between agents over the broker.
type Envelope struct {
	FromAgent      string      `json:"from_agent"`
	ToAgent        string      `json:"to_agent"`
	TraceID        string      `json:"trace_id"`
	ConversationID string      `json:"conversation_id"`
	PayloadType    PayloadType `json:"payload_type"`
	Payload        any         `json:"payload"`
}

// UpstreamFailurePayload is the structured payload for PayloadUpstreamFailure.
type UpstreamFailurePayload struct {
	FromAgent string `json:"from_agent"`
	Error     string `json:"error"`
}

// UpstreamRejectionPayload is the structured payload for PayloadUpstreamRejection.
type UpstreamRejectionPayload struct {
	FromAgent     string `json:"from_agent"`
	GuardrailName string `json:"guardrail_name"`
	Reason        string `json:"reason"`
}

// DecodeError signals that an envelope or its payload could not be parsed.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// NewUpstreamFailure builds an envelope carrying an upstream failure, used by
// the runtime when a non-terminal agent's pipeline produces a Failure.
func NewUpstreamFailure(fromAgent, toAgent, traceID, conversationID, errMsg string) Envelope {
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    PayloadUpstreamFailure,
		Payload:        UpstreamFailurePayload{FromAgent: fromAgent, Error: errMsg},
	}
}

// NewUpstreamRejection builds an envelope carrying an upstream guardrail block.
func NewUpstreamRejection(fromAgent, toAgent, traceID, conversationID, guardrailName, reason string) Envelope {
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    PayloadUpstreamRejection,
		Payload:        UpstreamRejectionPayload{FromAgent: fromAgent, GuardrailName: guardrailName, Reason: reason},
	}
}

// NewNormal builds an envelope carrying a regular, successfully produced payload.
func NewNormal(fromAgent, toAgent, traceID, conversationID string, payload any) Envelope {
	return Envelope{
		FromAgent:      fromAgent,
		ToAgent:        toAgent,
		TraceID:        traceID,
		ConversationID: conversationID,
		PayloadType:    PayloadNormal,
		Payload:        payload,
	}
}

// Encode produces the canonical UTF-8 JSON form. If Payload cannot be
// marshaled as structured data it falls back to its fmt.Sprintf("%v", ...)
// string form and logs one WARN-level record rather than dropping the
// message.
func Encode(e Envelope) ([]byte, error) {
	if _, err := json.Marshal(e.Payload); err != nil {
		log.Printf("WARN agent=%s conversation=%s: payload encode fallback to string: %v", e.FromAgent, e.ConversationID, err)
		e.Payload = fmt.Sprintf("%v", e.Payload)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, &DecodeError{Reason: "failed to encode envelope", Cause: err}
	}
	return data, nil
}

// Decode recovers an Envelope from its wire form. Unknown extra keys are
// tolerated and dropped, matching §6.1's "any other keys must be tolerated".
func Decode(data []byte) (Envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, &DecodeError{Reason: "failed to decode envelope", Cause: err}
	}

	e := Envelope{
		FromAgent:      typeutil.SafeStringDefault(raw["from_agent"], ""),
		ToAgent:        typeutil.SafeStringDefault(raw["to_agent"], ""),
		TraceID:        typeutil.SafeStringDefault(raw["trace_id"], ""),
		ConversationID: typeutil.SafeStringDefault(raw["conversation_id"], ""),
		PayloadType:    PayloadType(typeutil.SafeStringDefault(raw["payload_type"], string(PayloadNormal))),
		Payload:        raw["payload"],
	}

	if e.FromAgent == "" || e.ToAgent == "" || e.TraceID == "" || e.ConversationID == "" {
		return Envelope{}, &DecodeError{Reason: "envelope missing required field"}
	}

	return e, nil
}

// DecodeUpstreamFailure extracts the structured UpstreamFailurePayload from a
// decoded envelope's untyped Payload (a map[string]any after JSON decode).
func DecodeUpstreamFailure(e Envelope) (UpstreamFailurePayload, bool) {
	m, ok := typeutil.SafeMapStringAny(e.Payload)
	if !ok {
		return UpstreamFailurePayload{}, false
	}
	return UpstreamFailurePayload{
		FromAgent: typeutil.SafeStringDefault(m["from_agent"], ""),
		Error:     typeutil.SafeStringDefault(m["error"], ""),
	}, true
}

// DecodeUpstreamRejection extracts the structured UpstreamRejectionPayload.
func DecodeUpstreamRejection(e Envelope) (UpstreamRejectionPayload, bool) {
	m, ok := typeutil.SafeMapStringAny(e.Payload)
	if !ok {
		return UpstreamRejectionPayload{}, false
	}
	return UpstreamRejectionPayload{
		FromAgent:     typeutil.SafeStringDefault(m["from_agent"], ""),
		GuardrailName: typeutil.SafeStringDefault(m["guardrail_name"], ""),
		Reason:        typeutil.SafeStringDefault(m["reason"], ""),
	}, true
}

// DecodeInput is what an agent's Decoder receives: the payload discriminator
// alongside the raw payload value, so a decoder can react differently to
// Normal input versus an upstream failure/rejection it is propagating.
type DecodeInput struct {
	PayloadType PayloadType
	Payload     any
}

// StreamNameFor converts an agent name to its input stream identifier, the
// sole source of truth per §6.4. AgentNameFromStream is its inverse.
func StreamNameFor(agentName string) string {
	return "agent_" + agentName + "_tasks"
}

// AgentNameFromStream recovers the agent name from a stream identifier
// produced by StreamNameFor. Returns false if streamName is not of that shape.
func AgentNameFromStream(streamName string) (string, bool) {
	const prefix = "agent_"
	const suffix = "_tasks"
	if len(streamName) <= len(prefix)+len(suffix) {
		return "", false
	}
	if streamName[:len(prefix)] != prefix || streamName[len(streamName)-len(suffix):] != suffix {
		return "", false
	}
	return streamName[len(prefix) : len(streamName)-len(suffix)], true
}
