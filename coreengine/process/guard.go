package process

import (
	"context"

	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/stage"
)

// GuardrailCheck is one policy check a Guard stage evaluates in order.
// PolicyName becomes the Rejected outcome's policy name on a block.
type GuardrailCheck struct {
	PolicyName  string
	CheckPrompt string
}

// GuardrailEvaluator decides whether input is blocked by a single guardrail's
// check prompt. Kept independent of any concrete registry type so the
// process layer stays free of composition-root concerns; see
// internal/agents/codegen for the Model-backed implementation used in
// production and internal/registry.Guardrail for the stored shape it adapts.
type GuardrailEvaluator interface {
	Evaluate(goCtx context.Context, checkPrompt string, input any) (blocked bool, reason string, err error)
}

// Guard builds a guard stage: runs every check against input in order and
// stops at the first block, replacing the outcome with
// Rejected(policyName, reason, ctx). An empty checks slice behaves as
// identity.
func Guard(name string, checks []GuardrailCheck, evaluator GuardrailEvaluator) stage.Stage {
	return stage.New(name, func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		for _, c := range checks {
			blocked, reason, err := evaluator.Evaluate(goCtx, c.CheckPrompt, input)
			if err != nil {
				return outcome.Failure(err.Error(), pctx)
			}
			if blocked {
				return outcome.Rejected(c.PolicyName, reason, pctx)
			}
		}
		return outcome.Success(input, pctx)
	})
}
