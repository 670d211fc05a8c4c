package memory

import "github.com/BaSui01/cortex/types"

// Action 是一次对话轮次后的记忆整合动作
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// UpdateBatch 每次整合推进的消息数
const UpdateBatch = 3

// Decide 根据已有记忆与当前消息数决定整合动作。
// 无记忆且消息数大于 2 时创建；距上次整合新增超过 2 条时更新。
func Decide(m *types.Memory, messageCount int) Action {
	if m == nil {
		if messageCount > 2 {
			return ActionCreate
		}
		return ActionNone
	}
	if messageCount-m.LastUpdateCount > 2 {
		return ActionUpdate
	}
	return ActionNone
}
