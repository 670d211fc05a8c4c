package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/cortex/agent/conversation"
	"github.com/BaSui01/cortex/api"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 对话接口 Handler
// =============================================================================

// ChatService 对话服务，由 conversation.Service 实现
type ChatService interface {
	Respond(ctx context.Context, req conversation.RespondRequest) (*conversation.RespondResult, error)
	Get(ctx context.Context, id string) (*types.Conversation, error)
	List(ctx context.Context, ownerID string) ([]*types.Conversation, error)
}

// ChatHandler 对话接口处理器
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		service: service,
		logger:  logger.With(zap.String("handler", "chat")),
	}
}

// HandleRespond 处理一条用户消息并返回助手回复
// @Summary 对话回复
// @Description 存储用户消息，执行一轮对话并返回追加的助手消息
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body api.RespondRequest true "用户消息"
// @Success 200 {object} api.RespondResponse "助手回复"
// @Failure 400 {object} Response "无效请求"
// @Failure 500 {object} Response "内部错误"
// @Router /respond [post]
func (h *ChatHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	var req api.RespondRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	start := time.Now()
	res, err := h.service.Respond(r.Context(), conversation.RespondRequest{
		Sender:         req.Sender,
		Kind:           types.MessageKind(req.Type),
		Content:        req.Content,
		OwnerID:        req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("respond",
		requestID(r),
		zap.String("user_id", req.UserID),
		zap.String("conversation_id", res.ConversationID),
		zap.String("kind", string(res.Response.Kind)),
		zap.Duration("duration", time.Since(start)),
	)
	WriteJSON(w, http.StatusOK, api.RespondResponse{
		ConversationID: res.ConversationID,
		Response:       res.Response,
	})
}

// HandleGetConversation 按 ID 获取对话
// @Summary 获取对话
// @Tags 对话
// @Produce json
// @Param conversation_id query string true "对话 ID"
// @Success 200 {object} api.ConversationResponse "对话"
// @Failure 404 {object} api.ConversationResponse "对话不存在"
// @Router /get/conversation [get]
func (h *ChatHandler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := RequireQuery(w, r, "conversation_id", h.logger)
	if !ok {
		return
	}
	conv, err := h.service.Get(r.Context(), id)
	if err != nil {
		if types.IsErrorCode(err, types.ErrNotFound) {
			WriteJSON(w, http.StatusNotFound, api.ConversationResponse{
				Conversation: fmt.Sprintf("Conversation with id '%s' not found", id),
			})
			return
		}
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, api.ConversationResponse{Conversation: conv})
}

// HandleListConversations 获取用户的全部对话
// @Summary 对话列表
// @Tags 对话
// @Produce json
// @Param user_id query string true "用户 ID"
// @Success 200 {object} api.ConversationsResponse "对话列表"
// @Router /get/conversation/all [get]
func (h *ChatHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := RequireQuery(w, r, "user_id", h.logger)
	if !ok {
		return
	}
	convs, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, api.ConversationsResponse{Conversations: convs})
}
