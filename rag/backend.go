package rag

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/cortex/types"
)

// ErrCollectionNotFound is returned by Load when a collection has never been indexed.
var ErrCollectionNotFound = errors.New("rag: collection not found")

// UpsertResult is what one backend reports after indexing a document.
// Only the vector backend fills Features.
type UpsertResult struct {
	Nodes    int
	Features *types.DocumentFeatures
}

// Indexer writes a parsed document into one backend collection.
type Indexer interface {
	Source() types.IndexSource
	Upsert(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error)
}

// Backend is an Indexer whose collections can be loaded as a handle H.
// Load is all-or-nothing and returns ErrCollectionNotFound for absent collections.
type Backend[H any] interface {
	Indexer
	Load(ctx context.Context, collectionID string) (H, error)
}

// Observer receives timing for indexing tasks and retrieval paths.
type Observer interface {
	ObserveIndexTask(source string, success bool, d time.Duration)
	ObserveRetrieval(path string, success bool, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveIndexTask(string, bool, time.Duration) {}
func (nopObserver) ObserveRetrieval(string, bool, time.Duration) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
