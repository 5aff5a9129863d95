package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_FakeIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	batch := NewBatchedStore(s)

	fid, err := batch.InsertFile(&File{Path: "a.qs"})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), fid)

	did, err := batch.InsertDefinition(&Definition{FileID: fid, Name: "x", Kind: "variable"})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), did)

	// Nothing reaches SQLite before the commit.
	f, err := s.FileByPath("a.qs")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBatchedStore_LookupsPreferBuffer(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	committed := insertTestFile(t, s, "lib.qs")
	insertTestDefinition(t, s, committed.ID, "reward", "function", 2)

	batch := NewBatchedStore(s)
	fid, err := batch.InsertFile(&File{Path: "a.qs"})
	require.NoError(t, err)
	_, err = batch.InsertDefinition(&Definition{FileID: fid, Name: "x", Kind: "variable", StartLine: 1, StartCol: 4})
	require.NoError(t, err)

	f, err := batch.FileByPath("a.qs")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Negative(t, f.ID)

	d, err := batch.DefinitionAtStart(fid, "x", 1, 4)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Negative(t, d.ID)

	// Passthrough to the committed file.
	f, err = batch.FileByPath("lib.qs")
	require.NoError(t, err)
	require.NotNil(t, f)
	d, err = batch.DefinitionAtStart(f.ID, "reward", 2, 0)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Positive(t, d.ID)
}

func TestCommitBatch_RemapsIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	lib := insertTestFile(t, s, "lib.qs")
	libDef := insertTestDefinition(t, s, lib.ID, "reward", "function", 0)

	batch := NewBatchedStore(s)
	fid, _ := batch.InsertFile(&File{Path: "a.qs", Hash: "h"})
	did, _ := batch.InsertDefinition(&Definition{FileID: fid, Name: "gold", Kind: "variable"})
	_, _ = batch.InsertUsage(&Usage{FileID: fid, DefinitionID: ptr(did), Name: "gold", StartLine: 2})
	_, _ = batch.InsertUsage(&Usage{FileID: fid, DefinitionID: ptr(libDef.ID), Name: "reward", StartLine: 3})
	_, _ = batch.InsertDiagnostic(&Diagnostic{FileID: fid, Kind: "unused", Severity: "warning", Message: "m"})

	require.NoError(t, s.CommitBatch(batch))

	f, err := s.FileByPath("a.qs")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Positive(t, f.ID)

	defs, err := s.DefinitionsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	usages, err := s.UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, defs[0].ID, *usages[0].DefinitionID)
	assert.Equal(t, libDef.ID, *usages[1].DefinitionID)

	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, diags, 1)
}

func TestCommitBatch_ReplacesExistingFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	old := insertTestFile(t, s, "a.qs")
	insertTestDefinition(t, s, old.ID, "stale", "variable", 0)

	batch := NewBatchedStore(s)
	fid, _ := batch.InsertFile(&File{Path: "a.qs", Hash: "new", DeclCount: 2})
	_, _ = batch.InsertDefinition(&Definition{FileID: fid, Name: "fresh", Kind: "variable"})
	require.NoError(t, s.CommitBatch(batch))

	f, err := s.FileByPath("a.qs")
	require.NoError(t, err)
	assert.Equal(t, old.ID, f.ID, "row id is kept")
	assert.Equal(t, "new", f.Hash)
	assert.Equal(t, 2, f.DeclCount)

	defs, err := s.DefinitionsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "fresh", defs[0].Name)
}

func TestBatchedStore_Merge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	first := NewBatchedStore(s)
	second := NewBatchedStore(s)

	for i, b := range []*BatchedStore{first, second} {
		path := []string{"a.qs", "b.qs"}[i]
		fid, _ := b.InsertFile(&File{Path: path})
		did, _ := b.InsertDefinition(&Definition{FileID: fid, Name: "x", Kind: "variable"})
		_, _ = b.InsertUsage(&Usage{FileID: fid, DefinitionID: ptr(did), Name: "x"})
	}

	all := NewBatchedStore(s)
	all.Merge(first)
	all.Merge(second)
	require.Len(t, all.Files, 2)
	assert.NotEqual(t, all.Files[0].ID, all.Files[1].ID)
	assert.Equal(t, all.Definitions[1].ID, *all.Usages[1].DefinitionID)
	assert.Equal(t, all.Files[1].ID, all.Definitions[1].FileID)

	require.NoError(t, s.CommitBatch(all))
	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
