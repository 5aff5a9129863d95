package questscript

import (
	"database/sql"
	"fmt"

	"github.com/jward/questscript/ast"
	"github.com/jward/questscript/internal/diagnostics"
	"github.com/jward/questscript/internal/store"
)

// QueryBuilder answers editor queries from the persisted index, so tools
// can serve them without loading the program.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder returns a QueryBuilder over s.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// containsAt is the position filter for a range whose columns are named
// with prefix p. Its placeholders take containsArgs.
func containsAt(p string) string {
	return p + `start_line <= ? AND ` + p + `end_line >= ?
		   AND (` + p + `start_line < ? OR (` + p + `start_line = ? AND ` + p + `start_col <= ?))
		   AND (` + p + `end_line > ? OR (` + p + `end_line = ? AND ` + p + `end_col >= ?))`
}

func containsArgs(line, col int) []any {
	return []any{line, line, line, line, col, line, line, col}
}

func (q *QueryBuilder) file(path string) (*store.File, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	return q.store.RequireFile(path)
}

// DefinitionAt returns the definition of the name used at (line, col) in
// file. An indexed file with no resolved usage there yields no locations.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) ([]Location, error) {
	f, err := q.file(file)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	args := append([]any{f.ID}, containsArgs(line, col)...)
	rows, err := q.store.DB().Query(
		`SELECT df.path, d.start_line, d.start_col, d.end_line, d.end_col
		 FROM usages u
		 JOIN definitions d ON d.id = u.definition_id
		 JOIN files df ON df.id = d.file_id
		 WHERE u.file_id = ? AND `+containsAt("u.")+`
		 ORDER BY df.path, d.start_line, d.start_col`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("definition at: query usages: %w", err)
	}
	return scanLocations(rows, "definition at")
}

// ReferencesTo returns every usage of the name defined at (line, col) in
// file, sorted by file, line and column.
func (q *QueryBuilder) ReferencesTo(file string, line, col int) ([]Location, error) {
	f, err := q.file(file)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	args := append([]any{f.ID}, containsArgs(line, col)...)
	rows, err := q.store.DB().Query(
		`SELECT uf.path, u.start_line, u.start_col, u.end_line, u.end_col
		 FROM definitions d
		 JOIN usages u ON u.definition_id = d.id
		 JOIN files uf ON uf.id = u.file_id
		 WHERE d.file_id = ? AND `+containsAt("d.")+`
		 ORDER BY uf.path, u.start_line, u.start_col`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("references to: query definitions: %w", err)
	}
	return scanLocations(rows, "references to")
}

// DefinitionsNamed returns the locations of every definition called name.
func (q *QueryBuilder) DefinitionsNamed(name string) ([]Location, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	rows, err := q.store.DB().Query(
		`SELECT f.path, d.start_line, d.start_col, d.end_line, d.end_col
		 FROM definitions d JOIN files f ON f.id = d.file_id
		 WHERE d.name = ?
		 ORDER BY f.path, d.start_line, d.start_col`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("definitions named: %w", err)
	}
	return scanLocations(rows, "definitions named")
}

func scanLocations(rows *sql.Rows, op string) ([]Location, error) {
	defer rows.Close()
	var out []Location
	for rows.Next() {
		var loc Location
		r := &loc.Range
		if err := rows.Scan(&loc.File, &r.Start.Line, &r.Start.Col, &r.End.Line, &r.End.Col); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return out, nil
}

// Diagnostics returns the persisted diagnostics of file, or of every file
// when file is empty, sorted by location.
func (q *QueryBuilder) Diagnostics(file string) ([]Diagnostic, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	query := `SELECT f.path, d.kind, d.severity, d.name, d.message,
			d.start_line, d.start_col, d.end_line, d.end_col,
			d.related_path, d.related_line, d.related_col
		 FROM diagnostics d JOIN files f ON f.id = d.file_id`
	var args []any
	if file != "" {
		if _, err := q.file(file); err != nil {
			return nil, fmt.Errorf("diagnostics: %w", err)
		}
		query += " WHERE f.path = ?"
		args = append(args, file)
	}
	rows, err := q.store.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var (
			d               Diagnostic
			kind, severity  string
			relPath         string
			relLine, relCol int
			start, end      ast.Position
		)
		if err := rows.Scan(&d.Location.File, &kind, &severity, &d.Name, &d.Message,
			&start.Line, &start.Col, &end.Line, &end.Col, &relPath, &relLine, &relCol); err != nil {
			return nil, fmt.Errorf("diagnostics: scan: %w", err)
		}
		d.Kind, d.Severity = diagnostics.Kind(kind), diagnostics.Severity(severity)
		d.Location.Range = ast.Range{Start: start, End: end}
		if relPath != "" {
			d.Related = &Location{File: relPath, Range: ast.Range{
				Start: ast.Position{Line: relLine, Col: relCol},
				End:   ast.Position{Line: relLine, Col: relCol},
			}}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diagnostics: rows: %w", err)
	}
	diagnostics.Sort(out)
	return out, nil
}

// Files returns the indexed files ordered by path.
func (q *QueryBuilder) Files() ([]*IndexedFile, error) {
	if q.store == nil {
		return nil, ErrNoStore
	}
	return q.store.Files()
}
