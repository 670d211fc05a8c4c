package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewStores creates the conversation, document and memory stores for the
// configured backend.
func NewStores(ctx context.Context, config StoreConfig, logger *zap.Logger) (*Stores, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStores(), nil
	case StoreTypeMongo:
		return NewMongoStores(ctx, config.Mongo, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// NewMemoryStores returns in-process stores.
func NewMemoryStores() *Stores {
	convs := NewMemoryConversationStore()
	docs := NewMemoryDocumentStore()
	mems := NewMemoryMemoryStore()
	return &Stores{
		Conversations: convs,
		Documents:     docs,
		Memories:      mems,
		closer: func() error {
			_ = convs.Close()
			_ = docs.Close()
			return mems.Close()
		},
	}
}

// MustNewStores creates the stores or panics on error.
//
// WARNING: This function should ONLY be used during application initialization.
func MustNewStores(ctx context.Context, config StoreConfig, logger *zap.Logger) *Stores {
	stores, err := NewStores(ctx, config, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create stores: %v", err))
	}
	return stores
}
