package types

import (
	"sort"
	"strings"
)

// EvidenceItem is one scored unit of retrieved text.
// Score is kept in [0,1]; ID is unique within one retrieval call.
type EvidenceItem struct {
	ID     string      `json:"id"`
	Text   string      `json:"text"`
	Score  float64     `json:"score"`
	Source IndexSource `json:"source"`
}

// SubQuery is one independently retrievable fragment of a user question.
type SubQuery struct {
	Text           string `json:"sub_query"`
	StructuredHint string `json:"graph_query"`
}

// HintEntities splits the structured hint into its entity tokens.
func (q SubQuery) HintEntities() []string {
	parts := strings.Split(q.StructuredHint, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReasoningStep is the composed context for one sub-query.
type ReasoningStep struct {
	SubQueryText    string `json:"query"`
	StructuredHint  string `json:"properties"`
	ComposedContext string `json:"context"`
}

// ThinkingOutput is the result of one reasoning call.
type ThinkingOutput struct {
	Reasoning   []ReasoningStep `json:"reasoning"`
	FinalAnswer string          `json:"final_answer"`
	Table       Table           `json:"table"`
}

// TableRow is one row of a dynamically keyed table.
type TableRow map[string]any

// Keys returns the sorted key set of the row.
func (r TableRow) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table is a list of rows that must share one key set.
type Table []TableRow

// KeySet returns the key set of the first row, or nil for an empty table.
func (t Table) KeySet() []string {
	if len(t) == 0 {
		return nil
	}
	return t[0].Keys()
}

// Uniform reports whether every row has exactly the same keys.
// The returned index is the first offending row, or -1.
func (t Table) Uniform() (bool, int) {
	if len(t) == 0 {
		return true, -1
	}
	want := t[0].Keys()
	for i := 1; i < len(t); i++ {
		got := t[i].Keys()
		if len(got) != len(want) {
			return false, i
		}
		for j := range got {
			if got[j] != want[j] {
				return false, i
			}
		}
	}
	return true, -1
}
