package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind classifies a conversation message.
type MessageKind string

const (
	KindQuery             MessageKind = "query"
	KindInternalKnowledge MessageKind = "internal_knowledge"
	KindMemory            MessageKind = "memory"
	KindFromConversation  MessageKind = "from_conversation"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindQuery, KindInternalKnowledge, KindMemory, KindFromConversation:
		return true
	}
	return false
}

// AssistantSender is the sender name used for messages produced by the service.
const AssistantSender = "cortex"

// Message is one append-only entry of a conversation.
type Message struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender"`
	Kind      MessageKind     `json:"type"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Reasoning []ReasoningStep `json:"reasoning,omitempty"`
	Table     Table           `json:"table,omitempty"`
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(sender string, kind MessageKind, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// FromAssistant reports whether the message was produced by the service.
func (m Message) FromAssistant() bool {
	return m.Sender == AssistantSender
}

// Conversation owns its message list exclusively.
type Conversation struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"user_id"`
	Title       string         `json:"title,omitempty"`
	Messages    []Message      `json:"messages"`
	OutputTable Table          `json:"output_table"`
	Summary     string         `json:"summary,omitempty"`
	Highlight   string         `json:"highlight,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Memory is the long-term memory record of one conversation.
// LastUpdateCount is the message-count watermark at the last consolidation.
type Memory struct {
	ID              string `json:"id,omitempty"`
	ConversationID  string `json:"conversation_id"`
	OwnerID         string `json:"user_id"`
	Summary         string `json:"summary"`
	Title           string `json:"title"`
	Highlights      string `json:"highlights"`
	LastUpdateCount int    `json:"last_update_count"`
}
