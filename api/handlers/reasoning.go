package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/cortex/api"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🧠 推理与检索接口 Handler
// =============================================================================

// Thinker 由 reasoning.Engine 实现
type Thinker interface {
	Think(ctx context.Context, ownerID, query string) (*types.ThinkingOutput, error)
}

// SparseRetriever 由 rag.Engine 实现
type SparseRetriever interface {
	SparseRetrieve(ctx context.Context, indexName, query string, threshold float64) ([]string, string, error)
}

// ReasoningHandler 推理接口处理器
type ReasoningHandler struct {
	thinker Thinker
	sparse  SparseRetriever
	logger  *zap.Logger
}

// NewReasoningHandler 创建推理处理器
func NewReasoningHandler(thinker Thinker, sparse SparseRetriever, logger *zap.Logger) *ReasoningHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReasoningHandler{
		thinker: thinker,
		sparse:  sparse,
		logger:  logger.With(zap.String("handler", "reasoning")),
	}
}

// HandleReason 对用户文档执行一次完整推理
// @Summary 推理
// @Tags 推理
// @Accept json
// @Produce json
// @Param request body api.ReasonRequest true "推理请求"
// @Success 200 {object} types.ThinkingOutput "推理结果"
// @Failure 500 {object} Response "推理失败"
// @Router /reason [post]
func (h *ReasoningHandler) HandleReason(w http.ResponseWriter, r *http.Request) {
	var req api.ReasonRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Query) == "" {
		WriteError(w, types.NewInvalidRequestError("username and query are required"), h.logger)
		return
	}

	start := time.Now()
	out, err := h.thinker.Think(r.Context(), req.Username, req.Query)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	h.logger.Info("reason",
		requestID(r),
		zap.String("user", req.Username),
		zap.Int("steps", len(out.Reasoning)),
		zap.Int("rows", len(out.Table)),
		zap.Duration("duration", time.Since(start)),
	)
	WriteJSON(w, http.StatusOK, out)
}

// HandleSparseRetrieve 查询单个稀疏索引
// @Summary 稀疏检索
// @Tags 推理
// @Accept json
// @Produce json
// @Param request body api.SparseRetrieveRequest true "检索请求"
// @Success 200 {object} api.SparseRetrieveResponse "命中结果"
// @Router /sparse-retrieve [post]
func (h *ReasoningHandler) HandleSparseRetrieve(w http.ResponseWriter, r *http.Request) {
	var req api.SparseRetrieveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.IndexName) == "" {
		WriteError(w, types.NewInvalidRequestError("query and index_name are required"), h.logger)
		return
	}
	ids, text, err := h.sparse.SparseRetrieve(r.Context(), req.IndexName, req.Query, req.ScoreThreshold)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	WriteJSON(w, http.StatusOK, api.SparseRetrieveResponse{Results: ids, CombinedText: text})
}
