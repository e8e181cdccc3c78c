// Package outcome implements the three-valued result algebra that every
// stage, process, and the agent runtime itself produces: a message either
// succeeds, fails, or is rejected by a guardrail. Failure and Rejected are
// kept distinct on purpose; see DESIGN.md.
package outcome

import "github.com/agentpipeline/core/coreengine/pipectx"

// Kind discriminates the three Outcome variants.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindFailure:
		return "Failure"
	case KindRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Outcome is the closed algebraic result of a stage invocation. Exactly one
// of the three variants holds; Ctx is always populated regardless of which.
type Outcome struct {
	kind Kind

	value any
	err   string

	policyName string
	reason     string

	ctx pipectx.PipelineContext
}

// Success wraps a value produced by a stage that completed normally.
func Success(value any, ctx pipectx.PipelineContext) Outcome {
	return Outcome{kind: KindSuccess, value: value, ctx: ctx}
}

// Failure wraps an unrecoverable error, surfaced after retries are exhausted.
func Failure(errMsg string, ctx pipectx.PipelineContext) Outcome {
	return Outcome{kind: KindFailure, err: errMsg, ctx: ctx}
}

// Rejected wraps a guardrail block. Semantically distinct from Failure.
func Rejected(policyName, reason string, ctx pipectx.PipelineContext) Outcome {
	return Outcome{kind: KindRejected, policyName: policyName, reason: reason, ctx: ctx}
}

func (o Outcome) Kind() Kind                    { return o.kind }
func (o Outcome) IsSuccess() bool                { return o.kind == KindSuccess }
func (o Outcome) IsFailure() bool                { return o.kind == KindFailure }
func (o Outcome) IsRejected() bool               { return o.kind == KindRejected }
func (o Outcome) Context() pipectx.PipelineContext { return o.ctx }

// Value returns the success payload. Calling it on a non-Success outcome
// returns nil; callers must check Kind() first.
func (o Outcome) Value() any { return o.value }

// Error returns the failure message. Empty for non-Failure outcomes.
func (o Outcome) Error() string { return o.err }

// PolicyName returns the blocking guardrail's name. Empty for non-Rejected outcomes.
func (o Outcome) PolicyName() string { return o.policyName }

// Reason returns the rejection reason. Empty for non-Rejected outcomes.
func (o Outcome) Reason() string { return o.reason }

// WithContext returns a copy of the outcome with a replaced context, used by
// the stage composition operator to thread stepIndex/stepLogs forward without
// touching the payload.
func (o Outcome) WithContext(ctx pipectx.PipelineContext) Outcome {
	o.ctx = ctx
	return o
}

// Map applies f to the Success payload only; Failure and Rejected pass
// through unchanged (context included). Satisfies functor identity and
// composition laws: x.Map(id) == x, x.Map(f).Map(g) == x.Map(g after f).
func (o Outcome) Map(f func(any) any) Outcome {
	if o.kind != KindSuccess {
		return o
	}
	return Success(f(o.value), o.ctx)
}

// FlatMap sequences only in the Success branch; Failure and Rejected
// short-circuit without invoking f. Prefer the Process layer over calling
// this directly from stage authors.
func (o Outcome) FlatMap(f func(any, pipectx.PipelineContext) Outcome) Outcome {
	if o.kind != KindSuccess {
		return o
	}
	return f(o.value, o.ctx)
}
