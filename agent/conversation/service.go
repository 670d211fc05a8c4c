package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/cortex/agent/memory"
	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// Consolidator 轮次结束后的记忆整合
type Consolidator interface {
	Consolidate(ctx context.Context, conv *types.Conversation) (memory.Action, *types.Memory, error)
}

// RespondRequest is one incoming user message.
type RespondRequest struct {
	Sender         string
	Kind           types.MessageKind
	Content        string
	OwnerID        string
	ConversationID string
}

// RespondResult carries the turn output.
type RespondResult struct {
	ConversationID string
	Response       types.Message
	Conversation   *types.Conversation
}

// Service stores the user message, runs one agent turn and consolidates
// memory.
type Service struct {
	agent         *Agent
	conversations persistence.ConversationStore
	consolidator  Consolidator
	logger        *zap.Logger
}

// NewService 创建对话服务；consolidator 为 nil 时不整合记忆
func NewService(agent *Agent, conversations persistence.ConversationStore, consolidator Consolidator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		agent:         agent,
		conversations: conversations,
		consolidator:  consolidator,
		logger:        logger.With(zap.String("component", "chat_service")),
	}
}

// Respond handles one user message. A blank ConversationID starts a new
// conversation.
func (s *Service) Respond(ctx context.Context, req RespondRequest) (*RespondResult, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, types.NewInvalidRequestError("user_id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, types.NewInvalidRequestError("content is required")
	}
	if req.Kind == "" {
		req.Kind = types.KindQuery
	}
	if !req.Kind.Valid() {
		return nil, types.NewInvalidRequestError(fmt.Sprintf("unknown message type %q", req.Kind))
	}
	sender := req.Sender
	if sender == "" {
		sender = req.OwnerID
	}

	msg := types.NewMessage(sender, req.Kind, req.Content)
	conversationID, err := s.store(ctx, req, msg)
	if err != nil {
		return nil, err
	}

	res, err := s.agent.Turn(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if s.consolidator != nil {
		if action, _, err := s.consolidator.Consolidate(ctx, res.Conversation); err != nil {
			s.logger.Warn("memory consolidation failed",
				zap.String("conversation", conversationID),
				zap.String("action", string(action)),
				zap.Error(err))
		}
	}

	return &RespondResult{
		ConversationID: conversationID,
		Response:       res.Message,
		Conversation:   res.Conversation,
	}, nil
}

func (s *Service) store(ctx context.Context, req RespondRequest, msg types.Message) (string, error) {
	if req.ConversationID == "" {
		conv, err := s.conversations.Create(ctx, &types.Conversation{
			OwnerID:     req.OwnerID,
			Messages:    []types.Message{msg},
			OutputTable: types.Table{},
		})
		if err != nil {
			return "", types.NewInternalError("create conversation", err)
		}
		s.logger.Debug("conversation created", zap.String("conversation", conv.ID), zap.String("owner", req.OwnerID))
		return conv.ID, nil
	}

	conv, err := s.conversations.Append(ctx, persistence.AppendRequest{ConversationID: req.ConversationID, Message: msg})
	if err != nil {
		return "", storeError(err, req.ConversationID)
	}
	if conv.OwnerID != req.OwnerID {
		s.logger.Warn("conversation owner mismatch",
			zap.String("conversation", conv.ID),
			zap.String("owner", conv.OwnerID),
			zap.String("user_id", req.OwnerID))
	}
	return conv.ID, nil
}

// Get 按 ID 获取对话
func (s *Service) Get(ctx context.Context, id string) (*types.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, types.NewInvalidRequestError("conversation_id is required")
	}
	conv, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return conv, nil
}

// List 获取用户的全部对话
func (s *Service) List(ctx context.Context, ownerID string) ([]*types.Conversation, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, types.NewInvalidRequestError("user_id is required")
	}
	convs, err := s.conversations.ListByOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, types.NewInternalError("list conversations", err)
	}
	if convs == nil {
		convs = []*types.Conversation{}
	}
	return convs, nil
}
