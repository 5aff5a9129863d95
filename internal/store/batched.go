package store

import "sync"

// BatchedStore buffers index inserts in memory using fake (negative) IDs.
// It implements DataStore so the indexer can write to it without knowing
// whether it is hitting SQLite or an in-memory buffer.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// Lookups that miss the buffer pass through to the underlying Store.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Files       []File
	Definitions []Definition
	Usages      []Usage
	Diagnostics []Diagnostic

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for reads.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	b.Files = append(b.Files, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertDefinition(d *Definition) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Definitions = append(b.Definitions, *d)
	return fakeID, nil
}

func (b *BatchedStore) InsertUsage(u *Usage) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	u.ID = fakeID
	b.Usages = append(b.Usages, *u)
	return fakeID, nil
}

func (b *BatchedStore) InsertDiagnostic(d *Diagnostic) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	d.ID = fakeID
	b.Diagnostics = append(b.Diagnostics, *d)
	return fakeID, nil
}

// FileByPath prefers a buffered file over the committed one.
func (b *BatchedStore) FileByPath(path string) (*File, error) {
	b.mu.Lock()
	for i := range b.Files {
		if b.Files[i].Path == path {
			f := b.Files[i]
			b.mu.Unlock()
			return &f, nil
		}
	}
	b.mu.Unlock()
	return b.store.FileByPath(path)
}

// DefinitionAtStart searches the buffer for fake file IDs and the database
// otherwise.
func (b *BatchedStore) DefinitionAtStart(fileID int64, name string, line, col int) (*Definition, error) {
	if fileID >= 0 {
		return b.store.DefinitionAtStart(fileID, name, line, col)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Definitions {
		d := &b.Definitions[i]
		if d.FileID == fileID && d.Name == name && d.StartLine == line && d.StartCol == col {
			out := *d
			return &out, nil
		}
	}
	return nil, nil
}

// Merge appends the contents of other, re-allocating fake IDs so they stay
// unique within b. Workers fill private batches that are merged before a
// single commit.
func (b *BatchedStore) Merge(other *BatchedStore) {
	other.mu.Lock()
	defer other.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	remap := make(map[int64]int64)
	fake := func(id int64) int64 {
		if id >= 0 {
			return id
		}
		if n, ok := remap[id]; ok {
			return n
		}
		n := b.allocFakeID()
		remap[id] = n
		return n
	}
	for _, f := range other.Files {
		f.ID = fake(f.ID)
		b.Files = append(b.Files, f)
	}
	for _, d := range other.Definitions {
		d.ID, d.FileID = fake(d.ID), fake(d.FileID)
		b.Definitions = append(b.Definitions, d)
	}
	for _, u := range other.Usages {
		u.ID, u.FileID = fake(u.ID), fake(u.FileID)
		if u.DefinitionID != nil {
			id := fake(*u.DefinitionID)
			u.DefinitionID = &id
		}
		b.Usages = append(b.Usages, u)
	}
	for _, d := range other.Diagnostics {
		d.ID, d.FileID = fake(d.ID), fake(d.FileID)
		b.Diagnostics = append(b.Diagnostics, d)
	}
}
