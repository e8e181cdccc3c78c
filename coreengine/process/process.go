// Package process implements the higher-level stage factories every concrete
// agent is assembled from: Pure, Effect, Model-backed, Tool-backed, and
// Conditional, plus the bounded reflection loop shared by all of them.
package process

import (
	"context"
	"fmt"

	"github.com/agentpipeline/core/coreengine/outcome"
	"github.com/agentpipeline/core/coreengine/pipectx"
	"github.com/agentpipeline/core/coreengine/stage"
)

// MaxReflections is a bounded non-negative integer in [0, 10]. 0 means one
// attempt, no retries; n > 0 means one attempt plus up to n reflections.
type MaxReflections int

// Clamp bounds a requested reflection count to the allowed range.
func (n MaxReflections) Clamp() MaxReflections {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}

// OnFailure rewrites the input between a failed attempt and the next one.
// The default is identity: retry with the same input unchanged.
type OnFailure func(input any, errMsg string) any

func identityOnFailure(input any, _ string) any { return input }

// Body is the inner computation a Process wraps with reflection. It returns
// either a successful value or an error; Failure/Rejected bookkeeping is
// handled by the caller so that Body authors only deal with plain Go errors.
type Body func(goCtx context.Context, input any, pctx pipectx.PipelineContext) (any, error)

// reflect runs body up to 1+n times, rewriting the input via onFailure
// between attempts, matching the "bounded for loop, never unstructured
// retry combinators" design note. When attempts is non-nil it receives the
// 1-based number of the attempt in progress; Effect, Model and Tool all
// pass nil.
func reflect(goCtx context.Context, body Body, input any, pctx pipectx.PipelineContext, n MaxReflections, onFailure OnFailure, attempts *int) outcome.Outcome {
	n = n.Clamp()
	if onFailure == nil {
		onFailure = identityOnFailure
	}

	current := input
	var lastErr string

	for attempt := 0; attempt <= int(n); attempt++ {
		if attempts != nil {
			*attempts = attempt + 1
		}

		value, err := body(goCtx, current, pctx)
		if err == nil {
			return outcome.Success(value, pctx)
		}

		lastErr = err.Error()
		if attempt < int(n) {
			current = onFailure(current, lastErr)
			continue
		}
	}

	msg := lastErr
	if n > 0 {
		msg = fmt.Sprintf("max reflections (%d) exceeded: %s", int(n), lastErr)
	}
	return outcome.Failure(msg, pctx)
}

// Pure wraps a total, non-suspending function. An error returned by f, or a
// panic raised by f and recovered here, becomes a Failure; Pure itself never retries (reflection on a
// deterministic function is pointless).
func Pure(name string, f func(any) (any, error)) stage.Stage {
	return stage.New(name, func(_ context.Context, input any, pctx pipectx.PipelineContext) (result outcome.Outcome) {
		defer func() {
			if rec := recover(); rec != nil {
				result = outcome.Failure(fmt.Sprintf("panic in %s: %v", name, rec), pctx)
			}
		}()
		value, err := f(input)
		if err != nil {
			return outcome.Failure(err.Error(), pctx)
		}
		return outcome.Success(value, pctx)
	})
}

// Effect wraps a computation that may have side effects (I/O, non-determinism)
// but does not call a model or a tool. Domain errors become Failure, with
// optional bounded reflection.
func Effect(name string, body Body, maxReflections MaxReflections, onFailure OnFailure) stage.Stage {
	return stage.New(name, func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		return reflect(goCtx, body, input, pctx, maxReflections, onFailure, nil)
	})
}

// When runs inner only if predicate holds for the input; otherwise the input
// passes through unchanged as a Success.
func When(name string, predicate func(any) bool, inner stage.Stage) stage.Stage {
	return stage.New(name, func(goCtx context.Context, input any, pctx pipectx.PipelineContext) outcome.Outcome {
		if !predicate(input) {
			return outcome.Success(input, pctx)
		}
		return inner.Invoke(goCtx, input, pctx)
	})
}
