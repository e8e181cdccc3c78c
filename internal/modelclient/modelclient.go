// Package modelclient provides the blocking model-call collaborator used by
// Model-backed processes. The only implementation here is deterministic and
// offline, matching §1's "model provider's actual network call is out of
// scope (offline/deterministic implementation only)".
package modelclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Provider implements coreengine/process.LLMProvider.
type Provider interface {
	Generate(ctx context.Context, model, prompt string, options map[string]any) (string, error)
}

// DeterministicProvider returns a reproducible, prompt-derived response
// without making any network call. Useful as the default local provider and
// throughout the test suite, where a real model's non-determinism would
// make assertions impossible.
type DeterministicProvider struct {
	// Responder optionally overrides the canned response for testing; when
	// nil, Generate derives a stable pseudo-response from the prompt hash.
	Responder func(model, prompt string) (string, error)
}

// Generate implements Provider.
func (p *DeterministicProvider) Generate(_ context.Context, model, prompt string, _ map[string]any) (string, error) {
	if p.Responder != nil {
		return p.Responder(model, prompt)
	}
	sum := sha256.Sum256([]byte(model + "|" + prompt))
	return fmt.Sprintf("deterministic-response:%s", hex.EncodeToString(sum[:8])), nil
}

var _ Provider = (*DeterministicProvider)(nil)
