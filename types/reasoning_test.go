package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Uniform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		table   Table
		uniform bool
		bad     int
	}{
		{"empty", Table{}, true, -1},
		{"single row", Table{{"a": 1}}, true, -1},
		{"same keys different order", Table{{"a": 1, "b": 2}, {"b": 3, "a": 4}}, true, -1},
		{"missing key", Table{{"a": 1, "b": 2}, {"a": 3}}, false, 1},
		{"renamed key", Table{{"a": 1}, {"a": 2}, {"c": 3}}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, idx := tt.table.Uniform()
			assert.Equal(t, tt.uniform, ok)
			assert.Equal(t, tt.bad, idx)
		})
	}
}

func TestSubQuery_HintEntities(t *testing.T) {
	t.Parallel()

	q := SubQuery{Text: "How do LLMs work?", StructuredHint: " LLMs, Working ,, "}
	assert.Equal(t, []string{"LLMs", "Working"}, q.HintEntities())
	assert.Empty(t, SubQuery{}.HintEntities())
}

func TestMessageKind_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, KindQuery.Valid())
	assert.True(t, KindFromConversation.Valid())
	assert.False(t, MessageKind("system").Valid())
}

func TestDocumentFeatures_ToDocument(t *testing.T) {
	t.Parallel()

	f := DocumentFeatures{Summary: "s", Highlights: []string{"h1"}, DocumentType: "paper"}
	doc := f.ToDocument("u1", "kag.pdf")
	assert.Equal(t, "u1", doc.OwnerID)
	assert.Equal(t, "kag.pdf", doc.Name)
	assert.Equal(t, "paper", doc.DocType)

	f.Highlights[0] = "changed"
	assert.Equal(t, "h1", doc.Highlights[0])
}
