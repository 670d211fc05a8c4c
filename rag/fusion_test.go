package rag

import (
	"fmt"
	"math"
	"testing"

	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFuse_ThresholdAndDedup(t *testing.T) {
	items := []types.EvidenceItem{
		{ID: "a", Text: "first", Score: 0.9},
		{ID: "b", Text: "low", Score: 0.2},
		{ID: "a", Text: "dup", Score: 0.95},
		{ID: "c", Text: "edge", Score: 0.7},
		{ID: "d", Text: "over", Score: 1.3},
		{ID: "e", Text: "nan", Score: math.NaN()},
	}

	got := Fuse(items, 0.7)
	assert.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "c", got[1].ID)
	assert.Equal(t, 1.0, got[2].Score)
	assert.Equal(t, "first edge over", JoinTexts(got))
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, Fuse(nil, 0.5))
	assert.Equal(t, "", JoinTexts(nil))
}

func TestFuse_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		items := make([]types.EvidenceItem, n)
		for i := range items {
			items[i] = types.EvidenceItem{
				ID:    fmt.Sprintf("id-%d", rapid.IntRange(0, 9).Draw(t, "id")),
				Score: rapid.Float64Range(-0.5, 1.5).Draw(t, "score"),
				Text:  "t",
			}
		}
		threshold := rapid.Float64Range(0, 1).Draw(t, "threshold")

		fused := Fuse(items, threshold)
		seen := map[string]bool{}
		for _, it := range fused {
			if it.Score < threshold {
				t.Fatalf("item %s scored %v below threshold %v", it.ID, it.Score, threshold)
			}
			if it.Score < 0 || it.Score > 1 {
				t.Fatalf("score %v outside [0,1]", it.Score)
			}
			if seen[it.ID] {
				t.Fatalf("duplicate id %s survived fusion", it.ID)
			}
			seen[it.ID] = true
		}
		if len(fused) > len(items) {
			t.Fatalf("fusion grew the list")
		}
	})
}
