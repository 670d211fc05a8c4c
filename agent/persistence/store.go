package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/cortex/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeMongo  StoreType = "mongo"
)

// Collection names used by the Mongo backend.
const (
	ConversationCollection = "conversation"
	DocumentCollection     = "documents"
	MemoryCollection       = "memories"
)

// MongoConfig contains MongoDB-specific configuration
type MongoConfig struct {
	// URI is the connection string, e.g. mongodb://localhost:27017
	URI string `json:"uri" yaml:"uri" env:"URI"`

	// Database is the database name
	Database string `json:"database" yaml:"database" env:"DATABASE"`

	// Timeout bounds every single store operation
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`

	// MaxPoolSize is the client connection pool size (0 = driver default)
	MaxPoolSize uint64 `json:"max_pool_size" yaml:"max_pool_size" env:"MAX_POOL_SIZE"`
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// Mongo configuration (only used when Type is "mongo")
	Mongo MongoConfig `json:"mongo" yaml:"mongo" env:"MONGO"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "cortex",
			Timeout:  10 * time.Second,
		},
	}
}

// Store is the base interface for all persistent stores
type Store interface {
	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}

// AppendRequest describes one atomic conversation update: one message is
// pushed, and OutputTable replaces the stored table when non-nil.
type AppendRequest struct {
	ConversationID string
	Message        types.Message
	OutputTable    types.Table
}

// ConversationStore persists conversations and their append-only messages.
type ConversationStore interface {
	Store

	// Create inserts a new conversation; an empty ID is assigned.
	Create(ctx context.Context, conv *types.Conversation) (*types.Conversation, error)

	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*types.Conversation, error)

	// ListByOwner returns the owner's conversations, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*types.Conversation, error)

	// Append pushes one message and refreshes last_updated in a single
	// update, returning the conversation after the write.
	Append(ctx context.Context, req AppendRequest) (*types.Conversation, error)

	// SetSummary mirrors the consolidated memory title and summary.
	SetSummary(ctx context.Context, id, title, summary string) error
}

// DocumentStore persists one record per indexed file.
type DocumentStore interface {
	Store

	// UpsertDocument replaces the record keyed by (OwnerID, Name).
	UpsertDocument(ctx context.Context, doc types.Document) error

	// GetDocument returns ErrNotFound when the file was never indexed.
	GetDocument(ctx context.Context, ownerID, name string) (*types.Document, error)

	ListByOwner(ctx context.Context, ownerID string) ([]types.Document, error)
}

// MemoryStore persists long-term conversation memories.
type MemoryStore interface {
	Store

	// GetByConversation returns ErrNotFound when no memory exists yet.
	GetByConversation(ctx context.Context, conversationID string) (*types.Memory, error)

	// Save inserts a memory without an ID and replaces it otherwise.
	Save(ctx context.Context, m *types.Memory) (*types.Memory, error)

	ListByOwner(ctx context.Context, ownerID string) ([]types.Memory, error)
}

// Stores bundles the three stores of one backend.
type Stores struct {
	Conversations ConversationStore
	Documents     DocumentStore
	Memories      MemoryStore
	closer        func() error
}

// Close releases the shared backend resources.
func (s *Stores) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Ping checks every store.
func (s *Stores) Ping(ctx context.Context) error {
	for _, st := range []Store{s.Conversations, s.Documents, s.Memories} {
		if err := st.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
