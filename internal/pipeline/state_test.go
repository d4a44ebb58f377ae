package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hubble-cli/internal/model"
)

func TestTransition_ForwardPath(t *testing.T) {
	for i := 0; i < len(stageOrder)-1; i++ {
		assert.NoError(t, Transition(stageOrder[i], stageOrder[i+1]), "%s -> %s", stageOrder[i], stageOrder[i+1])
	}
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		from, to model.RunState
	}{
		{model.RunStateIdle, model.RunStateSelecting},
		{model.RunStateQuerying, model.RunStateIdle},
		{model.RunStateRetrieving, model.RunStateQuerying},
		{model.RunStateDone, model.RunStateFailed},
		{model.RunStateFailed, model.RunStateQuerying},
		{model.RunStateFailed, model.RunStateFailed},
		{model.RunStateIdle, model.RunStateFailed},
		{model.RunStateRendering, model.RunStateFailed},
		{model.RunStateDone, model.RunStateIdle},
	}
	for _, tt := range tests {
		assert.Error(t, Transition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransition_Failure(t *testing.T) {
	for _, s := range []model.RunState{
		model.RunStateQuerying, model.RunStateSelecting, model.RunStateRetrieving, model.RunStateExtracting,
	} {
		assert.NoError(t, Transition(s, model.RunStateFailed), s)
		assert.True(t, CanFail(s))
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(model.RunStateDone))
	assert.True(t, IsTerminal(model.RunStateFailed))
	assert.False(t, IsTerminal(model.RunStateRendering))
	assert.False(t, IsTerminal(model.RunStateIdle))
}

func TestMachine_Advance(t *testing.T) {
	var seen []model.RunState
	m := &machine{state: model.RunStateIdle, onChange: func(s model.RunState) { seen = append(seen, s) }}

	require.NoError(t, m.advance(model.RunStateQuerying))
	require.Error(t, m.advance(model.RunStateDone))
	assert.Equal(t, model.RunStateQuerying, m.state)
	require.NoError(t, m.advance(model.RunStateFailed))

	assert.Equal(t, []model.RunState{model.RunStateQuerying, model.RunStateFailed}, seen)
}
