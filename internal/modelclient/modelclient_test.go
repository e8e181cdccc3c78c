package modelclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicProviderIsStableForSameInput(t *testing.T) {
	p := &DeterministicProvider{}
	first, err := p.Generate(context.Background(), "codegen-model", "write a function", nil)
	require.NoError(t, err)
	second, err := p.Generate(context.Background(), "codegen-model", "write a function", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeterministicProviderVariesWithPromptOrModel(t *testing.T) {
	p := &DeterministicProvider{}
	a, err := p.Generate(context.Background(), "codegen-model", "prompt a", nil)
	require.NoError(t, err)
	b, err := p.Generate(context.Background(), "codegen-model", "prompt b", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := p.Generate(context.Background(), "other-model", "prompt a", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDeterministicProviderUsesResponderOverride(t *testing.T) {
	p := &DeterministicProvider{
		Responder: func(model, prompt string) (string, error) {
			return "stubbed:" + model, nil
		},
	}
	response, err := p.Generate(context.Background(), "codegen-model", "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "stubbed:codegen-model", response)
}

func TestDeterministicProviderResponderErrorPropagates(t *testing.T) {
	p := &DeterministicProvider{
		Responder: func(model, prompt string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	_, err := p.Generate(context.Background(), "codegen-model", "anything", nil)
	assert.EqualError(t, err, "model unavailable")
}
