package conversation

import (
	"fmt"

	"github.com/BaSui01/cortex/types"
)

// State 一轮对话的状态
type State string

const (
	StateStart  State = "start"
	StateDecide State = "decide" // LLM 决定直接回复或调用工具
	StateRoute  State = "route"  // 执行工具或持久化直接回复
	StateEnd    State = "end"
)

// validTransitions 一轮对话严格线性推进，不回到 DECIDE
var validTransitions = map[State][]State{
	StateStart:  {StateDecide},
	StateDecide: {StateRoute},
	StateRoute:  {StateEnd},
	StateEnd:    {},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine records the states visited during one turn.
type machine struct {
	state   State
	visited []State
}

func newMachine() *machine {
	return &machine{state: StateStart}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return types.NewConversationStateError(fmt.Sprintf("invalid state transition: %s -> %s", m.state, next))
	}
	m.state = next
	m.visited = append(m.visited, next)
	return nil
}
