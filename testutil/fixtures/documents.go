// Package fixtures 提供测试用的文档与对话样例。
package fixtures

import (
	"strings"

	"github.com/BaSui01/cortex/types"
)

// ReportPages 两页季度报告的正文
var ReportPages = []string{
	"Acme Corp reported revenue of 12 million dollars in Q3. " +
		"The growth was driven by the Widget product line.",
	"Jane Doe is the CEO of Acme Corp. " +
		"She announced an expansion into the European market.",
}

// Report 以 PageSeparator 拼接的解析结果
func Report() types.ParsedDocument {
	return types.ParsedDocument{
		Name:    "acme-q3.pdf",
		Content: strings.Join(ReportPages, types.PageSeparator),
	}
}

// UserQuery 用户查询消息
func UserQuery(sender, content string) types.Message {
	return types.NewMessage(sender, types.KindQuery, content)
}

// AssistantReply 助手消息
func AssistantReply(kind types.MessageKind, content string) types.Message {
	return types.NewMessage(types.AssistantSender, kind, content)
}

// Conversation 一问一答的对话
func Conversation(owner string) *types.Conversation {
	return &types.Conversation{
		ID:      "conv-1",
		OwnerID: owner,
		Messages: []types.Message{
			UserQuery(owner, "What was Acme's Q3 revenue?"),
			AssistantReply(types.KindInternalKnowledge, "Acme reported 12 million dollars."),
		},
	}
}
