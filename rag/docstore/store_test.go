package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecords() []Record {
	return []Record{
		{ID: "p2", OwnerID: "u1", FileName: "a.pdf", DocID: "d2", RecordType: RecordTypePage, Page: 2, Content: "page two"},
		{ID: "p1", OwnerID: "u1", FileName: "a.pdf", DocID: "d1", RecordType: RecordTypePage, Page: 1, Content: "page one"},
		{ID: "s1", OwnerID: "u1", FileName: "a.pdf", DocID: "d1", RecordType: RecordTypeSummary, Page: 1, Content: "summary one"},
		{ID: "x1", OwnerID: "u2", FileName: "a.pdf", DocID: "d9", RecordType: RecordTypePage, Page: 1, Content: "other owner"},
	}
}

func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, sampleRecords()))

	got, err := s.Get(ctx, []string{"p1", "missing", "s1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "page one", got["p1"].Content)

	pages, err := s.ListByFile(ctx, "u1", "a.pdf", RecordTypePage)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "p1", pages[0].ID)
	assert.Equal(t, "p2", pages[1].ID)

	all, err := s.ListByFile(ctx, "u1", "a.pdf", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// upsert overwrites by id
	require.NoError(t, s.Put(ctx, []Record{{ID: "p1", OwnerID: "u1", FileName: "a.pdf", RecordType: RecordTypePage, Page: 1, Content: "page one v2"}}))
	got, err = s.Get(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, "page one v2", got["p1"].Content)

	assert.ErrorIs(t, s.Put(ctx, []Record{{ID: "", OwnerID: "u1"}}), ErrInvalidRecord)

	empty, err := s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(DefaultPath(t.TempDir()), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	runStoreContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := DefaultPath(t.TempDir())
	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), sampleRecords()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), []string{"p2"})
	require.NoError(t, err)
	assert.Equal(t, "page two", got["p2"].Content)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}
