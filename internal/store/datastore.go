package store

// DataStore is the write interface used while indexing a file. Both Store
// (direct SQLite) and BatchedStore (in-memory buffering for parallel
// checking) implement it.
type DataStore interface {
	// Inserts each return the assigned ID.
	InsertFile(f *File) (int64, error)
	InsertDefinition(d *Definition) (int64, error)
	InsertUsage(u *Usage) (int64, error)
	InsertDiagnostic(d *Diagnostic) (int64, error)

	// Cross-file lookup for usages whose definition lives in a file that is
	// not being rewritten.
	FileByPath(path string) (*File, error)
	DefinitionAtStart(fileID int64, name string, line, col int) (*Definition, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
