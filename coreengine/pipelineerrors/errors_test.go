package pipelineerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrorMessageWithCause(t *testing.T) {
	err := &StageError{StageName: "generate-code", Message: "model call failed", Cause: errors.New("timeout")}
	assert.Equal(t, "stage generate-code: model call failed: timeout", err.Error())
	assert.Equal(t, "timeout", errors.Unwrap(err).Error())
}

func TestStageErrorMessageWithoutCause(t *testing.T) {
	err := &StageError{StageName: "trim-whitespace", Message: "bad input"}
	assert.Equal(t, "stage trim-whitespace: bad input", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{ToolName: "subprocess-execute", Message: "execution failed", Cause: errors.New("exit 1")}
	assert.Equal(t, "tool subprocess-execute: execution failed: exit 1", err.Error())
}

func TestGuardrailBlockErrorMessage(t *testing.T) {
	err := &GuardrailBlockError{PolicyName: "no-harm", Reason: "contains exploit code"}
	assert.Equal(t, "guardrail no-harm blocked: contains exploit code", err.Error())
}

func TestInfrastructureErrorMessage(t *testing.T) {
	err := &InfrastructureError{Component: "broker", Message: "publish failed", Cause: errors.New("connection reset")}
	assert.Equal(t, "broker: publish failed: connection reset", err.Error())
	assert.Equal(t, "connection reset", errors.Unwrap(err).Error())
}

func TestInfrastructureErrorWithoutCause(t *testing.T) {
	err := &InfrastructureError{Component: "log sink", Message: "disk full"}
	assert.Equal(t, "log sink: disk full", err.Error())
}
