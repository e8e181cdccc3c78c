package agentdef

import "github.com/agentpipeline/core/coreengine/envelope"

// NormalDecoder decodes only the Normal payload shape; used as the inner
// decoder wrapped by WithPropagation.
type NormalDecoder func(payload any) (any, error)

// WithPropagation is the standard propagation primitive: it wraps a decoder
// that only knows how to handle Normal input, adding the default reaction to
// an upstream failure or rejection — produce a plain-text projection of it
// as the pipeline's input, rather than failing before the pipeline even
// starts. This is what lets a downstream agent continue (e.g. explain the
// failure to the end user) instead of every non-Success outcome cascading
// into more non-Success outcomes all the way to the terminal agent.
func WithPropagation(normal NormalDecoder) Decoder {
	return func(input envelope.DecodeInput) (any, error) {
		switch input.PayloadType {
		case envelope.PayloadUpstreamFailure:
			if p, ok := input.Payload.(envelope.UpstreamFailurePayload); ok {
				return formatUpstreamFailure(p.FromAgent, p.Error), nil
			}
			if m, ok := input.Payload.(map[string]any); ok {
				if e, ok := envelope.DecodeUpstreamFailure(envelope.Envelope{Payload: m}); ok {
					return formatUpstreamFailure(e.FromAgent, e.Error), nil
				}
			}
			return formatUpstreamFailure("", "unknown upstream failure"), nil
		case envelope.PayloadUpstreamRejection:
			if p, ok := input.Payload.(envelope.UpstreamRejectionPayload); ok {
				return formatUpstreamRejection(p.FromAgent, p.GuardrailName, p.Reason), nil
			}
			if m, ok := input.Payload.(map[string]any); ok {
				if e, ok := envelope.DecodeUpstreamRejection(envelope.Envelope{Payload: m}); ok {
					return formatUpstreamRejection(e.FromAgent, e.GuardrailName, e.Reason), nil
				}
			}
			return formatUpstreamRejection("", "", "unknown upstream rejection"), nil
		default:
			return normal(input.Payload)
		}
	}
}

func formatUpstreamFailure(fromAgent, errMsg string) string {
	return "Upstream agent " + fromAgent + " failed: " + errMsg
}

func formatUpstreamRejection(fromAgent, guardrailName, reason string) string {
	return "Upstream agent " + fromAgent + " was blocked by guardrail " + guardrailName + ": " + reason
}
