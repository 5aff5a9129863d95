package store

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func lastID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	id, err := insertFile(s.db, f)
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func insertFile(e execer, f *File) (int64, error) {
	res, err := e.Exec(
		"INSERT INTO files (path, hash, decl_count, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.DeclCount, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return lastID(res)
}

const fileCols = "id, path, hash, decl_count, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(&f.ID, &f.Path, &f.Hash, &f.DeclCount, &f.LastIndexed); err != nil {
		return nil, err
	}
	return f, nil
}

// FileByPath returns nil, nil when the path is not indexed.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// RequireFile is FileByPath with ErrNotIndexed for unknown paths.
func (s *Store) RequireFile(path string) (*File, error) {
	f, err := s.FileByPath(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotIndexed)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Definition operations ---

func (s *Store) InsertDefinition(d *Definition) (int64, error) {
	id, err := insertDefinition(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func insertDefinition(e execer, d *Definition) (int64, error) {
	res, err := e.Exec(
		`INSERT INTO definitions (file_id, name, kind, type, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Name, d.Kind, d.Type, d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert definition: %w", err)
	}
	return lastID(res)
}

// DefinitionCols is the column list for definition queries, exported for use
// by the query layer together with ScanDefinition.
const DefinitionCols = "id, file_id, name, kind, type, start_line, start_col, end_line, end_col"

// ScanDefinition scans a single row selected with DefinitionCols.
func ScanDefinition(scanner interface{ Scan(...any) error }) (*Definition, error) {
	d := &Definition{}
	err := scanner.Scan(&d.ID, &d.FileID, &d.Name, &d.Kind, &d.Type,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d, err := ScanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *Store) DefinitionsByFile(fileID int64) ([]*Definition, error) {
	defs, err := s.queryDefinitions(
		"SELECT "+DefinitionCols+" FROM definitions WHERE file_id = ? ORDER BY start_line, start_col", fileID)
	if err != nil {
		return nil, fmt.Errorf("definitions by file: %w", err)
	}
	return defs, nil
}

func (s *Store) DefinitionsByName(name string) ([]*Definition, error) {
	defs, err := s.queryDefinitions("SELECT "+DefinitionCols+" FROM definitions WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("definitions by name: %w", err)
	}
	return defs, nil
}

func (s *Store) DefinitionByID(id int64) (*Definition, error) {
	d, err := ScanDefinition(s.db.QueryRow("SELECT "+DefinitionCols+" FROM definitions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("definition by id: %w", err)
	}
	return d, nil
}

// DefinitionAtStart finds the definition of name starting exactly at
// (line, col) in a file. It returns nil, nil when there is none.
func (s *Store) DefinitionAtStart(fileID int64, name string, line, col int) (*Definition, error) {
	d, err := ScanDefinition(s.db.QueryRow(
		"SELECT "+DefinitionCols+" FROM definitions WHERE file_id = ? AND name = ? AND start_line = ? AND start_col = ?",
		fileID, name, line, col,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("definition at start: %w", err)
	}
	return d, nil
}

// --- Usage operations ---

func (s *Store) InsertUsage(u *Usage) (int64, error) {
	id, err := insertUsage(s.db, u)
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func insertUsage(e execer, u *Usage) (int64, error) {
	res, err := e.Exec(
		`INSERT INTO usages (file_id, definition_id, name, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.FileID, u.DefinitionID, u.Name, u.StartLine, u.StartCol, u.EndLine, u.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert usage: %w", err)
	}
	return lastID(res)
}

// UsageCols is the column list for usage queries.
const UsageCols = "id, file_id, definition_id, name, start_line, start_col, end_line, end_col"

// ScanUsage scans a single row selected with UsageCols.
func ScanUsage(scanner interface{ Scan(...any) error }) (*Usage, error) {
	u := &Usage{}
	err := scanner.Scan(&u.ID, &u.FileID, &u.DefinitionID, &u.Name,
		&u.StartLine, &u.StartCol, &u.EndLine, &u.EndCol)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) queryUsages(query string, args ...any) ([]*Usage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Usage
	for rows.Next() {
		u, err := ScanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UsagesByFile(fileID int64) ([]*Usage, error) {
	out, err := s.queryUsages(
		"SELECT "+UsageCols+" FROM usages WHERE file_id = ? ORDER BY start_line, start_col", fileID)
	if err != nil {
		return nil, fmt.Errorf("usages by file: %w", err)
	}
	return out, nil
}

func (s *Store) UsagesByDefinition(defID int64) ([]*Usage, error) {
	out, err := s.queryUsages("SELECT "+UsageCols+" FROM usages WHERE definition_id = ?", defID)
	if err != nil {
		return nil, fmt.Errorf("usages by definition: %w", err)
	}
	return out, nil
}

// --- Diagnostic operations ---

func (s *Store) InsertDiagnostic(d *Diagnostic) (int64, error) {
	id, err := insertDiagnostic(s.db, d)
	if err != nil {
		return 0, err
	}
	d.ID = id
	return id, nil
}

func insertDiagnostic(e execer, d *Diagnostic) (int64, error) {
	res, err := e.Exec(
		`INSERT INTO diagnostics (file_id, kind, severity, name, message,
			start_line, start_col, end_line, end_col, related_path, related_line, related_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FileID, d.Kind, d.Severity, d.Name, d.Message,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol, d.RelatedPath, d.RelatedLine, d.RelatedCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert diagnostic: %w", err)
	}
	return lastID(res)
}

// DiagnosticCols is the column list for diagnostic queries.
const DiagnosticCols = `id, file_id, kind, severity, name, message,
	start_line, start_col, end_line, end_col, related_path, related_line, related_col`

// ScanDiagnostic scans a single row selected with DiagnosticCols.
func ScanDiagnostic(scanner interface{ Scan(...any) error }) (*Diagnostic, error) {
	d := &Diagnostic{}
	err := scanner.Scan(&d.ID, &d.FileID, &d.Kind, &d.Severity, &d.Name, &d.Message,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol, &d.RelatedPath, &d.RelatedLine, &d.RelatedCol)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) DiagnosticsByFile(fileID int64) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		"SELECT "+DiagnosticCols+" FROM diagnostics WHERE file_id = ? ORDER BY start_line, start_col, kind", fileID)
	if err != nil {
		return nil, fmt.Errorf("diagnostics by file: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		d, err := ScanDiagnostic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
