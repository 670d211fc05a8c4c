package conversation

import (
	"testing"

	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateStart, StateDecide))
	assert.True(t, CanTransition(StateDecide, StateRoute))
	assert.True(t, CanTransition(StateRoute, StateEnd))

	assert.False(t, CanTransition(StateStart, StateRoute))
	assert.False(t, CanTransition(StateRoute, StateDecide))
	assert.False(t, CanTransition(StateEnd, StateDecide))
	assert.False(t, CanTransition(State("unknown"), StateEnd))
}

func TestMachine_RejectsSkippedState(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.to(StateDecide))
	err := m.to(StateEnd)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConversationState))
	assert.Contains(t, err.Error(), "decide -> end")
	assert.Equal(t, StateDecide, m.state)
}

func TestParseToolCallPolicy(t *testing.T) {
	p, err := ParseToolCallPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirst, p)

	p, err = ParseToolCallPolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	_, err = ParseToolCallPolicy("random")
	assert.Error(t, err)
}
