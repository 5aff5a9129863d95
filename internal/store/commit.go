package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch writes all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// IDs, and all FK references within the batch are rewritten using the
// fakeToReal mapping.
//
// A buffered file whose path is already indexed replaces that file's data
// and keeps its row ID. Insert order respects FK dependencies:
//  1. Files
//  2. Definitions (depend on file_id)
//  3. Usages (depend on file_id, definition_id)
//  4. Diagnostics (depend on file_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	resolve := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("fake id %d not in fakeToReal map", id)
		}
		return realID, nil
	}

	// 1. Files
	for _, f := range batch.Files {
		var existing int64
		err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existing)
		switch {
		case err == nil:
			if err := deleteFileDataTx(tx, existing); err != nil {
				return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
			}
			if _, err := tx.Exec(
				"UPDATE files SET hash = ?, decl_count = ?, last_indexed = ? WHERE id = ?",
				f.Hash, f.DeclCount, f.LastIndexed, existing,
			); err != nil {
				return fmt.Errorf("commit batch: update file %q: %w", f.Path, err)
			}
			fakeToReal[f.ID] = existing
		case err == sql.ErrNoRows:
			realID, err := insertFile(tx, &f)
			if err != nil {
				return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
			}
			fakeToReal[f.ID] = realID
		default:
			return fmt.Errorf("commit batch: lookup file %q: %w", f.Path, err)
		}
	}

	// 2. Definitions
	for _, d := range batch.Definitions {
		if d.FileID, err = resolve(d.FileID); err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", d.Name, err)
		}
		realID, err := insertDefinition(tx, &d)
		if err != nil {
			return fmt.Errorf("commit batch: definition %q: %w", d.Name, err)
		}
		fakeToReal[d.ID] = realID
	}

	// 3. Usages
	for _, u := range batch.Usages {
		if u.FileID, err = resolve(u.FileID); err != nil {
			return fmt.Errorf("commit batch: usage %q: %w", u.Name, err)
		}
		if u.DefinitionID != nil && *u.DefinitionID < 0 {
			realID, err := resolve(*u.DefinitionID)
			if err != nil {
				return fmt.Errorf("commit batch: usage %q: %w", u.Name, err)
			}
			u.DefinitionID = &realID
		}
		if _, err := insertUsage(tx, &u); err != nil {
			return fmt.Errorf("commit batch: usage %q: %w", u.Name, err)
		}
	}

	// 4. Diagnostics
	for _, d := range batch.Diagnostics {
		if d.FileID, err = resolve(d.FileID); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Message, err)
		}
		if _, err := insertDiagnostic(tx, &d); err != nil {
			return fmt.Errorf("commit batch: diagnostic %q: %w", d.Message, err)
		}
	}

	return tx.Commit()
}
