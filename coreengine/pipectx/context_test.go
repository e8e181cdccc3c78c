package pipectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialStartsAtZero(t *testing.T) {
	ctx := Initial("agent", "trace-1", "conv-1")
	assert.Equal(t, 0, ctx.StepIndex)
	assert.Empty(t, ctx.StepLogs)
	assert.Equal(t, "agent", ctx.AgentName)
}

func TestNextStepIncrements(t *testing.T) {
	ctx := Initial("agent", "trace-1", "conv-1")
	next := ctx.NextStep()
	assert.Equal(t, 1, next.StepIndex)
	assert.Equal(t, 0, ctx.StepIndex, "original context must not be mutated")
}

func TestWithLogAppendsWithoutAliasing(t *testing.T) {
	ctx := Initial("agent", "trace-1", "conv-1")
	first := ctx.WithLog(StageLog{StageName: "a", StageIndex: 1})
	second := first.WithLog(StageLog{StageName: "b", StageIndex: 2})

	assert.Len(t, first.StepLogs, 1)
	assert.Len(t, second.StepLogs, 2)
	assert.Equal(t, "a", first.StepLogs[0].StageName)
	assert.Equal(t, "a", second.StepLogs[0].StageName)
	assert.Equal(t, "b", second.StepLogs[1].StageName)
}

func TestWithLogDoesNotMutateSiblingBranch(t *testing.T) {
	base := Initial("agent", "trace-1", "conv-1").WithLog(StageLog{StageName: "shared"})

	branchA := base.WithLog(StageLog{StageName: "a-only"})
	branchB := base.WithLog(StageLog{StageName: "b-only"})

	assert.Len(t, branchA.StepLogs, 2)
	assert.Len(t, branchB.StepLogs, 2)
	assert.Equal(t, "a-only", branchA.StepLogs[1].StageName)
	assert.Equal(t, "b-only", branchB.StepLogs[1].StageName)
}
