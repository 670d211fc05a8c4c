package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/llm/tokenizer"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

var updateSchema = llm.MustCompileSchema("memory_update", memoryUpdateSchema)

// Recall vector metadata.
const (
	MetaOwner     = "owner_id"
	MetaType      = "type"
	MetaPath      = "path"
	MetaTimestamp = "timestamp"
	TypeRecall    = "recall"
)

// Observer 记录整合动作，nil 表示不记录
type Observer interface {
	ObserveMemory(action string, success bool, d time.Duration)
}

// Config 记忆整合配置
type Config struct {
	MaxTokens  int    `json:"max_tokens" yaml:"max_tokens"`
	RecallTopK int    `json:"recall_top_k" yaml:"recall_top_k"`
	Collection string `json:"collection" yaml:"collection"`
}

// DefaultConfig 2048 token 截断、召回 5 条
func DefaultConfig() Config {
	return Config{MaxTokens: 2048, RecallTopK: 5, Collection: "memory"}
}

type memoryUpdate struct {
	UpdatedSummary string `json:"updated_summary"`
	RecallMemory   string `json:"recall_memory"`
	Title          string `json:"title"`
}

// Consolidator folds conversation turns into a long-term Memory and
// recall vectors.
type Consolidator struct {
	provider      llm.Provider
	embedder      embedding.Provider
	vectors       vectorstore.Store
	memories      persistence.MemoryStore
	conversations persistence.ConversationStore
	tok           tokenizer.Tokenizer
	observer      Observer
	cfg           Config
	logger        *zap.Logger
}

// Deps 整合器依赖
type Deps struct {
	Provider      llm.Provider
	Embedder      embedding.Provider
	Vectors       vectorstore.Store
	Memories      persistence.MemoryStore
	Conversations persistence.ConversationStore
	Tokenizer     tokenizer.Tokenizer
	Observer      Observer
}

// NewConsolidator 创建记忆整合器，Tokenizer 为空时使用 gpt-4o 的 tiktoken 编码
func NewConsolidator(deps Deps, cfg Config, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.RecallTopK <= 0 {
		cfg.RecallTopK = def.RecallTopK
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	tok := deps.Tokenizer
	if tok == nil {
		tok = tokenizer.ForModel("gpt-4o")
	}
	return &Consolidator{
		provider:      deps.Provider,
		embedder:      deps.Embedder,
		vectors:       deps.Vectors,
		memories:      deps.Memories,
		conversations: deps.Conversations,
		tok:           tok,
		observer:      deps.Observer,
		cfg:           cfg,
		logger:        logger.With(zap.String("component", "memory_consolidator")),
	}
}

// Consolidate runs the policy for conv and, when it fires, updates the
// Memory, the recall vector and the conversation's title and summary.
func (c *Consolidator) Consolidate(ctx context.Context, conv *types.Conversation) (action Action, mem *types.Memory, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil && action != ActionNone && action != "" {
			c.observer.ObserveMemory(string(action), err == nil, time.Since(start))
		}
	}()

	existing, err := c.memories.GetByConversation(ctx, conv.ID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return ActionNone, nil, consolidationError("load memory", err)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		existing = nil
	}

	action = Decide(existing, len(conv.Messages))
	if action == ActionNone {
		return action, existing, nil
	}

	messages := conv.Messages
	summary := ""
	if action == ActionUpdate {
		messages = messages[max(len(messages)-UpdateBatch, 0):]
		summary = existing.Summary
	}

	transcript, err := tokenizer.Truncate(c.tok, RenderTranscript(messages), c.cfg.MaxTokens)
	if err != nil {
		return action, nil, consolidationError("truncate transcript", err)
	}

	recalls, err := c.searchRecall(ctx, conv.OwnerID, transcript)
	if err != nil {
		return action, nil, consolidationError("search recall memories", err)
	}

	var update memoryUpdate
	req := &llm.ChatRequest{Messages: llm.PromptMessages(
		fmt.Sprintf(memorySystemPrompt, formatRecalls(recalls)),
		fmt.Sprintf(memoryUserPrompt, transcript, summary),
	)}
	if err := llm.CompleteJSON(ctx, c.provider, req, updateSchema, &update); err != nil {
		return action, nil, consolidationError("memory update", err)
	}

	if err := c.saveRecall(ctx, conv, update.RecallMemory); err != nil {
		return action, nil, consolidationError("save recall memory", err)
	}

	mem = &types.Memory{
		ConversationID:  conv.ID,
		OwnerID:         conv.OwnerID,
		LastUpdateCount: UpdateBatch,
	}
	if existing != nil {
		cp := *existing
		mem = &cp
		mem.LastUpdateCount += UpdateBatch
	}
	mem.Summary = update.UpdatedSummary
	if strings.TrimSpace(update.Title) != "" {
		mem.Title = update.Title
	}

	saved, err := c.memories.Save(ctx, mem)
	if err != nil {
		return action, nil, consolidationError("save memory", err)
	}
	if err := c.conversations.SetSummary(ctx, conv.ID, saved.Title, saved.Summary); err != nil {
		return action, saved, consolidationError("mirror summary", err)
	}

	c.logger.Info("memory consolidated",
		zap.String("conversation", conv.ID),
		zap.String("owner", conv.OwnerID),
		zap.String("action", string(action)),
		zap.Int("recalls", len(recalls)),
		zap.Int("last_update_count", saved.LastUpdateCount))
	return action, saved, nil
}

func (c *Consolidator) searchRecall(ctx context.Context, ownerID, transcript string) ([]string, error) {
	vec, err := c.embedder.EmbedQuery(ctx, transcript)
	if err != nil {
		return nil, err
	}
	matches, err := c.vectors.Query(ctx, c.cfg.Collection, vec, c.cfg.RecallTopK, vectorstore.Filter{
		MetaOwner: ownerID,
		MetaType:  TypeRecall,
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text)
	}
	return out, nil
}

// saveRecall 每个对话只保留一条召回向量，按 owner/conversation 路径覆盖
func (c *Consolidator) saveRecall(ctx context.Context, conv *types.Conversation, recall string) error {
	if strings.TrimSpace(recall) == "" {
		return nil
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, []string{recall})
	if err != nil {
		return err
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embedder returned %d vectors for 1 document", len(vecs))
	}
	path := RecallPath(conv.OwnerID, conv.ID)
	return c.vectors.Upsert(ctx, c.cfg.Collection, []vectorstore.Record{{
		ID:     path,
		Values: vecs[0],
		Text:   recall,
		Metadata: map[string]string{
			MetaOwner:     conv.OwnerID,
			MetaType:      TypeRecall,
			MetaPath:      path,
			MetaTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}})
}

// RecallPath 召回向量 ID
func RecallPath(ownerID, conversationID string) string {
	return ownerID + "/" + conversationID
}

// RenderTranscript formats messages one per line as "sender: content".
func RenderTranscript(messages []types.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		role := "Human"
		if m.FromAssistant() {
			role = "AI"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func formatRecalls(recalls []string) string {
	return "<recall_memory>\n" + strings.Join(recalls, "\n") + "\n</recall_memory>"
}

func consolidationError(msg string, cause error) error {
	return types.NewError(types.ErrMemoryConsolidation, msg).WithCause(cause)
}
