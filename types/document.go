package types

import (
	"strings"
	"time"
)

// IndexSource names one of the three index backends.
type IndexSource string

const (
	SourceGraph  IndexSource = "graph"
	SourceVector IndexSource = "vector"
	SourceSparse IndexSource = "sparse"
)

// AllSources lists every index backend in a stable order.
func AllSources() []IndexSource {
	return []IndexSource{SourceGraph, SourceSparse, SourceVector}
}

// Document is the per-file record created after a successful indexing run.
// Re-indexing the same owner and name replaces the record.
type Document struct {
	ID         string    `json:"id,omitempty"`
	OwnerID    string    `json:"user_id"`
	Name       string    `json:"name"`
	DocType    string    `json:"type"`
	Summary    string    `json:"summary"`
	Highlights []string  `json:"highlights"`
	IndexedAt  time.Time `json:"indexed_at,omitempty"`
}

// DocumentFeatures is the structured summary derived by the vector backend.
type DocumentFeatures struct {
	Summary      string   `json:"summary"`
	Highlights   []string `json:"highlights"`
	DocumentType string   `json:"document_type"`
}

// ToDocument builds the Document record for an indexed file.
func (f DocumentFeatures) ToDocument(ownerID, name string) Document {
	highlights := make([]string, len(f.Highlights))
	copy(highlights, f.Highlights)
	return Document{
		OwnerID:    ownerID,
		Name:       name,
		DocType:    f.DocumentType,
		Summary:    f.Summary,
		Highlights: highlights,
		IndexedAt:  time.Now().UTC(),
	}
}

// CollectionKey identifies one logical index collection.
type CollectionKey struct {
	Source  IndexSource
	OwnerID string
}

// String renders the key as a relative storage path.
func (k CollectionKey) String() string {
	return string(k.Source) + "/" + k.OwnerID
}

// PageSeparator separates pages in parsed document content.
const PageSeparator = "\n---\n"

// ParsedDocument is the text extracted from one uploaded file.
type ParsedDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Pages splits the content on PageSeparator.
func (d ParsedDocument) Pages() []string {
	return strings.Split(d.Content, PageSeparator)
}
