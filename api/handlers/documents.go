package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/cortex/api"
	"github.com/BaSui01/cortex/rag"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// maxUploadBytes 上传文件上限
const maxUploadBytes = 64 << 20

// =============================================================================
// 📄 文档接口 Handler
// =============================================================================

// DocumentParser 把上传文件解析为文本
type DocumentParser interface {
	Parse(ctx context.Context, fileName string, r io.Reader) (types.ParsedDocument, error)
}

// DocumentIndexer 由 rag.Orchestrator 实现
type DocumentIndexer interface {
	Index(ctx context.Context, doc types.ParsedDocument, ownerID string) (*rag.IndexOutcome, error)
}

// ColumnDeriver 重新生成文档特征列，由 rag.VectorIndex 实现
type ColumnDeriver interface {
	DocumentColumn(ctx context.Context, ownerID, fileName, column string) (any, error)
}

// DocumentLister 列出用户已索引的文档
type DocumentLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error)
}

// MemoryLister 列出用户的长期记忆
type MemoryLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]types.Memory, error)
}

// DocumentHandler 文档与记忆接口处理器
type DocumentHandler struct {
	parser    DocumentParser
	indexer   DocumentIndexer
	columns   ColumnDeriver
	documents DocumentLister
	memories  MemoryLister
	logger    *zap.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(parser DocumentParser, indexer DocumentIndexer, columns ColumnDeriver, documents DocumentLister, memories MemoryLister, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		parser:    parser,
		indexer:   indexer,
		columns:   columns,
		documents: documents,
		memories:  memories,
		logger:    logger.With(zap.String("handler", "documents")),
	}
}

// HandleIndex 解析并索引上传的文件
// @Summary 索引文件
// @Tags 文档
// @Accept multipart/form-data
// @Produce json
// @Param user_name query string true "用户名"
// @Param file formData file true "待索引文件"
// @Success 200 {object} api.IndexResponse "索引成功"
// @Failure 500 {object} Response "索引失败"
// @Router /index [post]
func (h *DocumentHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequireQuery(w, r, "user_name", h.logger)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, types.NewInvalidRequestError("multipart field 'file' is required").WithCause(err), h.logger)
		return
	}
	defer file.Close()

	h.logger.Info("indexing request", requestID(r), zap.String("user", owner), zap.String("file", header.Filename))

	doc, err := h.parser.Parse(r.Context(), header.Filename, file)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if doc.Name == "" {
		doc.Name = header.Filename
	}

	out, err := h.indexer.Index(r.Context(), doc, owner)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if !out.Success {
		e := types.NewInternalError("Failed to index file", nil)
		if len(out.Failures) > 0 {
			e = e.WithCause(out.Failures[len(out.Failures)-1])
		}
		WriteError(w, e, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.IndexResponse{
		Status:  "success",
		Message: fmt.Sprintf("File %s indexed successfully for user %s", header.Filename, owner),
	})
}

// HandleListDocuments 获取用户的全部文档
// @Summary 文档列表
// @Tags 文档
// @Produce json
// @Param user_id query string true "用户 ID"
// @Success 200 {array} types.Document "文档列表"
// @Router /documents/all [get]
func (h *DocumentHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequireQuery(w, r, "user_id", h.logger)
	if !ok {
		return
	}
	docs, err := h.documents.ListByOwner(r.Context(), owner)
	if err != nil {
		WriteServiceError(w, types.NewInternalError("Error retrieving documents", err), h.logger)
		return
	}
	if docs == nil {
		docs = []types.Document{}
	}
	WriteJSON(w, http.StatusOK, docs)
}

// HandleListMemories 获取用户的全部长期记忆
// @Summary 记忆列表
// @Tags 文档
// @Produce json
// @Param user_id query string true "用户 ID"
// @Success 200 {array} types.Memory "记忆列表"
// @Router /memories/all [get]
func (h *DocumentHandler) HandleListMemories(w http.ResponseWriter, r *http.Request) {
	owner, ok := RequireQuery(w, r, "user_id", h.logger)
	if !ok {
		return
	}
	mems, err := h.memories.ListByOwner(r.Context(), owner)
	if err != nil {
		WriteServiceError(w, types.NewInternalError("Error retrieving memories", err), h.logger)
		return
	}
	if mems == nil {
		mems = []types.Memory{}
	}
	WriteJSON(w, http.StatusOK, mems)
}

// HandleDocumentColumn 重新生成文档的单个特征列
// @Summary 文档特征列
// @Tags 文档
// @Accept json
// @Produce json
// @Param request body api.DocumentColumnRequest true "列请求"
// @Success 200 {object} any "列值"
// @Router /document-column [post]
func (h *DocumentHandler) HandleDocumentColumn(w http.ResponseWriter, r *http.Request) {
	var req api.DocumentColumnRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.ColumnName) == "" {
		WriteError(w, types.NewInvalidRequestError("user_id, file_name and column_name are required"), h.logger)
		return
	}
	value, err := h.columns.DocumentColumn(r.Context(), req.UserID, req.FileName, req.ColumnName)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, value)
}
