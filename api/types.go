package api

import "github.com/BaSui01/cortex/types"

// =============================================================================
// 对话类型
// =============================================================================

// RespondRequest 是 /respond 的请求体。
// @Description 用户消息
type RespondRequest struct {
	// 发送者，为空时使用 user_id
	Sender string `json:"sender,omitempty" example:"alice"`
	// 消息类型：query / internal_knowledge / memory / from_conversation
	Type string `json:"type,omitempty" example:"query"`
	// 消息内容
	Content string `json:"content" example:"What does the contract say about renewal?" binding:"required"`
	// 用户身份
	UserID string `json:"user_id" example:"user-1" binding:"required"`
	// 为空时新建对话
	ConversationID string `json:"conversation_id,omitempty"`
}

// RespondResponse 是 /respond 的响应体。
type RespondResponse struct {
	ConversationID string        `json:"conversation_id"`
	Response       types.Message `json:"response"`
}

// ConversationResponse 包装单个对话；对话不存在时为说明文字。
type ConversationResponse struct {
	Conversation any `json:"conversation"`
}

// ConversationsResponse 包装用户的全部对话。
type ConversationsResponse struct {
	Conversations []*types.Conversation `json:"conversations"`
}

// =============================================================================
// 文档类型
// =============================================================================

// IndexResponse 是 /index 的响应体。
type IndexResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message"`
}

// DocumentColumnRequest 重新生成文档的单个特征列。
type DocumentColumnRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	FileName string `json:"file_name" binding:"required"`
	// summary / highlights / document_type
	ColumnName string `json:"column_name" example:"summary" binding:"required"`
}

// =============================================================================
// 推理与检索类型
// =============================================================================

// ReasonRequest 是 /reason 的请求体。
type ReasonRequest struct {
	Username string `json:"username" example:"user-1" binding:"required"`
	Query    string `json:"query" binding:"required"`
}

// SparseRetrieveRequest 查询单个稀疏索引。
type SparseRetrieveRequest struct {
	Query     string `json:"query" binding:"required"`
	IndexName string `json:"index_name" binding:"required"`
	// 小于等于 0 时使用服务端默认阈值
	ScoreThreshold float64 `json:"score_threshold,omitempty" example:"0.6"`
}

// SparseRetrieveResponse 返回命中的节点 ID 与拼接文本。
type SparseRetrieveResponse struct {
	Results      []string `json:"results"`
	CombinedText string   `json:"combined_text"`
}
