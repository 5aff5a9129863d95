package store

import "fmt"

// FilesUsingDefinitions returns the IDs of files holding usages resolved to
// any of the given definitions.
func (s *Store) FilesUsingDefinitions(defIDs []int64) ([]int64, error) {
	if len(defIDs) == 0 {
		return nil, nil
	}
	query := "SELECT DISTINCT file_id FROM usages WHERE definition_id IN (" + placeholderList(len(defIDs)) + ")"
	rows, err := s.db.Query(query, int64sToArgs(defIDs)...)
	if err != nil {
		return nil, fmt.Errorf("files using definitions: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// BlastRadius returns the paths of other files whose usages resolve into
// the named file. Re-indexing that file detaches those usages, so callers
// re-index the returned files too.
func (s *Store) BlastRadius(path string) ([]string, error) {
	f, err := s.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("blast radius: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT DISTINCT uf.path
		 FROM usages u
		 JOIN definitions d ON d.id = u.definition_id
		 JOIN files uf ON uf.id = u.file_id
		 WHERE d.file_id = ? AND u.file_id <> ?
		 ORDER BY uf.path`,
		f.ID, f.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("blast radius: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
