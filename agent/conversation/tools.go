package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/types"
)

// Tool names exposed to the model.
const (
	ToolKnowledgeSearch = "KnowledgeSearch"
	ToolTableOperator   = "TableOperator"
)

// ToolCall is the closed set of tool invocations: KnowledgeSearch or TableUpdate.
type ToolCall interface {
	ToolName() string
	isToolCall()
}

// KnowledgeSearch runs the full reasoning pipeline over the owner's indexes.
type KnowledgeSearch struct {
	Query string `json:"query"`
}

// TableUpdate rewrites the conversation's output table.
type TableUpdate struct {
	InputText   string `json:"input_text"`
	Instruction string `json:"table_modification_instruction"`
}

func (KnowledgeSearch) ToolName() string { return ToolKnowledgeSearch }
func (TableUpdate) ToolName() string     { return ToolTableOperator }
func (KnowledgeSearch) isToolCall()      {}
func (TableUpdate) isToolCall()          {}

var knowledgeSearchSchema = llm.MustCompileSchema("knowledge_search", `{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1, "description": "The question to answer from the user's documents."}
  },
  "required": ["query"]
}`)

var tableOperatorSchema = llm.MustCompileSchema("table_operator", `{
  "type": "object",
  "properties": {
    "input_text": {"type": "string", "minLength": 1, "description": "The information required to update the table, extracted from the conversation as a detailed paragraph."},
    "table_modification_instruction": {"type": "string", "minLength": 1, "description": "The specific modifications the user wants to make to the table."}
  },
  "required": ["input_text", "table_modification_instruction"]
}`)

// ToolCatalog returns the two tools offered in DECIDE.
func ToolCatalog() []llm.ToolSchema {
	return []llm.ToolSchema{
		{
			Name:        ToolKnowledgeSearch,
			Description: "Searches internal knowledge base for information relevant to the user's query.",
			Parameters:  knowledgeSearchSchema.Raw(),
		},
		{
			Name:        ToolTableOperator,
			Description: "Updates the table data based on the provided input text and modification instructions.",
			Parameters:  tableOperatorSchema.Raw(),
		},
	}
}

// ParseToolCall validates the arguments and converts a provider tool call
// into the closed ToolCall variant.
func ParseToolCall(tc llm.ToolCall) (ToolCall, error) {
	switch tc.Name {
	case ToolKnowledgeSearch:
		var call KnowledgeSearch
		if err := decodeArgs(tc, knowledgeSearchSchema, &call); err != nil {
			return nil, err
		}
		return call, nil
	case ToolTableOperator:
		var call TableUpdate
		if err := decodeArgs(tc, tableOperatorSchema, &call); err != nil {
			return nil, err
		}
		return call, nil
	default:
		return nil, types.NewConversationStateError(fmt.Sprintf("unknown tool %q", tc.Name))
	}
}

func decodeArgs(tc llm.ToolCall, schema *llm.Schema, out any) error {
	args := tc.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := schema.Validate(args); err != nil {
		return types.NewConversationStateError(fmt.Sprintf("invalid %s arguments", tc.Name)).WithCause(err)
	}
	if err := json.Unmarshal(args, out); err != nil {
		return types.NewConversationStateError(fmt.Sprintf("decode %s arguments", tc.Name)).WithCause(err)
	}
	return nil
}

// ToolCallPolicy 决定一次回复中出现多个工具调用时的处理方式
type ToolCallPolicy string

const (
	PolicyFirst  ToolCallPolicy = "first"  // 只执行第一个
	PolicyAll    ToolCallPolicy = "all"    // 依次执行全部，合并为一条消息
	PolicyReject ToolCallPolicy = "reject" // 多于一个时报错
)

// ParseToolCallPolicy 解析配置值，空值为 first
func ParseToolCallPolicy(s string) (ToolCallPolicy, error) {
	switch p := ToolCallPolicy(s); p {
	case "":
		return PolicyFirst, nil
	case PolicyFirst, PolicyAll, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tool call policy %q", s)
	}
}

// Select applies the policy to the calls of one reply.
func (p ToolCallPolicy) Select(calls []llm.ToolCall) ([]llm.ToolCall, error) {
	if len(calls) <= 1 {
		return calls, nil
	}
	switch p {
	case PolicyAll:
		return calls, nil
	case PolicyReject:
		return nil, types.NewConversationStateError(fmt.Sprintf("model returned %d tool calls, policy allows one", len(calls)))
	default:
		return calls[:1], nil
	}
}
