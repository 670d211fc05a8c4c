package rag

import (
	"strings"

	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/types"
)

// Fuse applies the score threshold and collapses duplicate ids within one
// retrieval path. Scores are clamped to [0,1] first; for duplicates the
// first occurrence wins, so callers control precedence through input order.
func Fuse(items []types.EvidenceItem, threshold float64) []types.EvidenceItem {
	out := make([]types.EvidenceItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it.Score = vectorstore.ClampScore(it.Score)
		if it.Score < threshold {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// JoinTexts joins the non-empty item texts with single spaces.
func JoinTexts(items []types.EvidenceItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
