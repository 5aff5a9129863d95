package store

import "time"

// Index domain types. Positions are 0-based; end positions are inclusive.

type File struct {
	ID          int64
	Path        string
	Hash        string
	DeclCount   int
	LastIndexed time.Time
}

type Definition struct {
	ID        int64
	FileID    int64
	Name      string
	Kind      string
	Type      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Usage is one occurrence of a name. DefinitionID is nil when the name
// resolved to a host symbol or to nothing.
type Usage struct {
	ID           int64
	FileID       int64
	DefinitionID *int64
	Name         string
	StartLine    int
	StartCol     int
	EndLine      int
	EndCol       int
}

type Diagnostic struct {
	ID          int64
	FileID      int64
	Kind        string
	Severity    string
	Name        string
	Message     string
	StartLine   int
	StartCol    int
	EndLine     int
	EndCol      int
	RelatedPath string
	RelatedLine int
	RelatedCol  int
}
