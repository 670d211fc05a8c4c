package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/cortex/types"
	"github.com/google/uuid"
)

// closeFlag 内存存储共享的关闭状态
type closeFlag struct {
	mu     sync.RWMutex
	closed bool
}

func (c *closeFlag) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *closeFlag) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrStoreClosed
	}
	return ctx.Err()
}

// MemoryConversationStore is an in-process ConversationStore.
// 适合开发和测试，重启后数据丢失。
type MemoryConversationStore struct {
	closeFlag
	convs map[string]*types.Conversation
	order []string
}

// NewMemoryConversationStore 创建内存会话存储
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{convs: make(map[string]*types.Conversation)}
}

func (s *MemoryConversationStore) Create(_ context.Context, conv *types.Conversation) (*types.Conversation, error) {
	if conv == nil || strings.TrimSpace(conv.OwnerID) == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	c := cloneConversation(conv)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.LastUpdated = now
	if _, exists := s.convs[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.convs[c.ID] = c
	return cloneConversation(c), nil
}

func (s *MemoryConversationStore) Get(_ context.Context, id string) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(c), nil
}

func (s *MemoryConversationStore) ListByOwner(_ context.Context, ownerID string) ([]*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]*types.Conversation, 0)
	for _, id := range s.order {
		if c := s.convs[id]; c.OwnerID == ownerID {
			out = append(out, cloneConversation(c))
		}
	}
	return out, nil
}

func (s *MemoryConversationStore) Append(_ context.Context, req AppendRequest) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	c, ok := s.convs[req.ConversationID]
	if !ok {
		return nil, ErrNotFound
	}
	c.Messages = append(c.Messages, req.Message)
	if req.OutputTable != nil {
		c.OutputTable = cloneTable(req.OutputTable)
	}
	c.LastUpdated = time.Now().UTC()
	return cloneConversation(c), nil
}

func (s *MemoryConversationStore) SetSummary(_ context.Context, id, title, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	c, ok := s.convs[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	c.Summary = summary
	return nil
}

// MemoryDocumentStore is an in-process DocumentStore keyed by owner and name.
type MemoryDocumentStore struct {
	closeFlag
	docs map[[2]string]types.Document
}

// NewMemoryDocumentStore 创建内存文档存储
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[[2]string]types.Document)}
}

func (s *MemoryDocumentStore) UpsertDocument(_ context.Context, doc types.Document) error {
	if strings.TrimSpace(doc.OwnerID) == "" || strings.TrimSpace(doc.Name) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	key := [2]string{doc.OwnerID, doc.Name}
	if prev, ok := s.docs[key]; ok {
		doc.ID = prev.ID
	} else if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Highlights = append([]string(nil), doc.Highlights...)
	s.docs[key] = doc
	return nil
}

func (s *MemoryDocumentStore) GetDocument(_ context.Context, ownerID, name string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	doc, ok := s.docs[[2]string{ownerID, name}]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryDocumentStore) ListByOwner(_ context.Context, ownerID string) ([]types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]types.Document, 0)
	for key, doc := range s.docs {
		if key[0] == ownerID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MemoryMemoryStore is an in-process MemoryStore.
type MemoryMemoryStore struct {
	closeFlag
	byID map[string]types.Memory
}

// NewMemoryMemoryStore 创建内存记忆存储
func NewMemoryMemoryStore() *MemoryMemoryStore {
	return &MemoryMemoryStore{byID: make(map[string]types.Memory)}
}

func (s *MemoryMemoryStore) GetByConversation(_ context.Context, conversationID string) (*types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	for _, m := range s.byID {
		if m.ConversationID == conversationID {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryMemoryStore) Save(_ context.Context, m *types.Memory) (*types.Memory, error) {
	if m == nil || m.ConversationID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	saved := *m
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	} else if _, ok := s.byID[saved.ID]; !ok {
		return nil, ErrNotFound
	}
	s.byID[saved.ID] = saved
	return &saved, nil
}

func (s *MemoryMemoryStore) ListByOwner(_ context.Context, ownerID string) ([]types.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]types.Memory, 0)
	for _, m := range s.byID {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func cloneConversation(c *types.Conversation) *types.Conversation {
	out := *c
	out.Messages = append([]types.Message(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []types.Message{}
	}
	out.OutputTable = cloneTable(c.OutputTable)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneTable(t types.Table) types.Table {
	if t == nil {
		return nil
	}
	out := make(types.Table, len(t))
	for i, row := range t {
		r := make(types.TableRow, len(row))
		for k, v := range row {
			r[k] = v
		}
		out[i] = r
	}
	return out
}
