package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/BaSui01/cortex/agent/conversation")

// Thinker answers a question from the owner's indexed documents.
type Thinker interface {
	Think(ctx context.Context, ownerID, query string) (*types.ThinkingOutput, error)
}

// TableUpdater rewrites a table according to an instruction.
type TableUpdater interface {
	UpdateTable(ctx context.Context, existing types.Table, inputText, instruction string) (types.Table, error)
}

// Observer 记录每轮路由结果，nil 表示不记录
type Observer interface {
	ObserveTurn(route string, success bool, d time.Duration)
}

// Routes reported to the Observer.
const (
	RouteDirect    = "direct"
	RouteKnowledge = ToolKnowledgeSearch
	RouteTable     = ToolTableOperator
	RouteMultiple  = "multiple"
)

// Config 对话 Agent 配置
type Config struct {
	// HistoryWindow 是 DECIDE 时随最新消息一起发送的历史条数
	HistoryWindow  int            `json:"history_window" yaml:"history_window"`
	ToolCallPolicy ToolCallPolicy `json:"tool_call_policy" yaml:"tool_call_policy"`
	Timeout        time.Duration  `json:"timeout" yaml:"timeout"`
}

// DefaultConfig 默认 4 条历史、取第一个工具调用
func DefaultConfig() Config {
	return Config{
		HistoryWindow:  4,
		ToolCallPolicy: PolicyFirst,
		Timeout:        2 * time.Minute,
	}
}

// TurnResult is the outcome of one agent turn.
type TurnResult struct {
	Message      types.Message
	Conversation *types.Conversation
	ToolCalls    []ToolCall
	States       []State
}

// Route names the path the turn took.
func (r *TurnResult) Route() string {
	switch len(r.ToolCalls) {
	case 0:
		return RouteDirect
	case 1:
		return r.ToolCalls[0].ToolName()
	default:
		return RouteMultiple
	}
}

// Agent runs DECIDE -> ROUTE -> END over a stored conversation and appends
// exactly one assistant message per turn.
type Agent struct {
	provider      llm.Provider
	thinker       Thinker
	tables        TableUpdater
	conversations persistence.ConversationStore
	observer      Observer
	cfg           Config
	logger        *zap.Logger
}

// NewAgent 创建对话 Agent
func NewAgent(provider llm.Provider, thinker Thinker, tables TableUpdater, conversations persistence.ConversationStore, observer Observer, cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.ToolCallPolicy == "" {
		cfg.ToolCallPolicy = def.ToolCallPolicy
	}
	return &Agent{
		provider:      provider,
		thinker:       thinker,
		tables:        tables,
		conversations: conversations,
		observer:      observer,
		cfg:           cfg,
		logger:        logger.With(zap.String("component", "conversation_agent")),
	}
}

// Turn answers the newest message of the conversation. The caller has
// already appended the user message.
func (a *Agent) Turn(ctx context.Context, conversationID string) (result *TurnResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer func() {
		route := RouteDirect
		if result != nil {
			route = result.Route()
		}
		if a.observer != nil {
			a.observer.ObserveTurn(route, err == nil, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	conv, err := a.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, storeError(err, conversationID)
	}
	if len(conv.Messages) == 0 {
		return nil, types.NewConversationStateError("conversation has no message to answer")
	}

	m := newMachine()
	if err := m.to(StateDecide); err != nil {
		return nil, err
	}
	reply, err := a.decide(ctx, conv)
	if err != nil {
		return nil, err
	}

	if err := m.to(StateRoute); err != nil {
		return nil, err
	}
	result, err = a.route(ctx, conv, reply)
	if err != nil {
		return nil, err
	}

	if err := m.to(StateEnd); err != nil {
		return nil, err
	}
	result.States = m.visited

	span.SetAttributes(attribute.String("route", result.Route()))
	a.logger.Info("turn completed",
		zap.String("conversation", conversationID),
		zap.String("owner", conv.OwnerID),
		zap.String("route", result.Route()),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// decide sends the history window and the newest message with the tool catalog.
func (a *Agent) decide(ctx context.Context, conv *types.Conversation) (llm.Message, error) {
	req := &llm.ChatRequest{
		Messages:   append([]llm.Message{{Role: llm.RoleSystem, Content: decisionSystemPrompt}}, a.window(conv.Messages)...),
		Tools:      ToolCatalog(),
		ToolChoice: "auto",
	}
	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		return llm.Message{}, types.NewInternalError("decide failed", err)
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return llm.Message{}, types.NewConversationStateError("model returned no choices")
	}
	return msg, nil
}

// window returns up to HistoryWindow messages preceding the newest, plus the newest.
func (a *Agent) window(messages []types.Message) []llm.Message {
	from := max(len(messages)-a.cfg.HistoryWindow-1, 0)
	out := make([]llm.Message, 0, len(messages)-from)
	for _, m := range messages[from:] {
		role := llm.RoleUser
		if m.FromAssistant() {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: RenderMessage(m)})
	}
	return out
}

// RenderMessage formats a stored message for the model: the content,
// followed by the table when one is attached.
func RenderMessage(m types.Message) string {
	if len(m.Table) == 0 {
		return m.Content
	}
	table, err := json.Marshal(m.Table)
	if err != nil {
		return m.Content
	}
	return fmt.Sprintf("Answer: %s\nTable:\n%s", m.Content, table)
}

func (a *Agent) route(ctx context.Context, conv *types.Conversation, reply llm.Message) (*TurnResult, error) {
	if len(reply.ToolCalls) == 0 {
		text := strings.TrimSpace(reply.Content)
		if text == "" {
			return nil, types.NewConversationStateError("model returned neither a reply nor a tool call")
		}
		msg := types.NewMessage(types.AssistantSender, types.KindFromConversation, text)
		updated, err := a.append(ctx, conv.ID, msg, nil)
		if err != nil {
			return nil, err
		}
		return &TurnResult{Message: msg, Conversation: updated}, nil
	}

	selected, err := a.cfg.ToolCallPolicy.Select(reply.ToolCalls)
	if err != nil {
		return nil, err
	}
	calls := make([]ToolCall, 0, len(selected))
	for _, tc := range selected {
		call, err := ParseToolCall(tc)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if dropped := len(reply.ToolCalls) - len(calls); dropped > 0 {
		a.logger.Warn("extra tool calls ignored",
			zap.String("conversation", conv.ID),
			zap.Int("dropped", dropped))
	}

	// 多个调用依次执行，表格更新基于上一个调用的结果
	table := conv.OutputTable
	var (
		contents  []string
		reasoning []types.ReasoningStep
		newTable  types.Table
	)
	for _, call := range calls {
		out, err := a.execute(ctx, conv.OwnerID, table, call)
		if err != nil {
			return nil, err
		}
		contents = append(contents, out.FinalAnswer)
		reasoning = append(reasoning, out.Reasoning...)
		if out.Table != nil {
			newTable = out.Table
			table = out.Table
		}
	}

	msg := types.NewMessage(types.AssistantSender, types.KindInternalKnowledge, strings.Join(contents, "\n\n"))
	msg.Reasoning = reasoning
	msg.Table = newTable
	updated, err := a.append(ctx, conv.ID, msg, newTable)
	if err != nil {
		return nil, err
	}
	return &TurnResult{Message: msg, Conversation: updated, ToolCalls: calls}, nil
}

// execute dispatches one tool call.
func (a *Agent) execute(ctx context.Context, ownerID string, table types.Table, call ToolCall) (*types.ThinkingOutput, error) {
	switch c := call.(type) {
	case KnowledgeSearch:
		out, err := a.thinker.Think(ctx, ownerID, c.Query)
		if err != nil {
			return nil, err
		}
		return out, nil
	case TableUpdate:
		updated, err := a.tables.UpdateTable(ctx, table, c.InputText, c.Instruction)
		if err != nil {
			return nil, err
		}
		return &types.ThinkingOutput{FinalAnswer: "**Updated table**", Table: updated}, nil
	default:
		return nil, types.NewConversationStateError(fmt.Sprintf("unsupported tool call %T", call))
	}
}

func (a *Agent) append(ctx context.Context, conversationID string, msg types.Message, table types.Table) (*types.Conversation, error) {
	updated, err := a.conversations.Append(ctx, persistence.AppendRequest{
		ConversationID: conversationID,
		Message:        msg,
		OutputTable:    table,
	})
	if err != nil {
		return nil, storeError(err, conversationID)
	}
	return updated, nil
}

func storeError(err error, conversationID string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return types.NewNotFoundError(fmt.Sprintf("conversation %s not found", conversationID))
	}
	return types.NewInternalError("conversation store", err)
}
