package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ContentHash computes a deterministic hash of a syntax tree's JSON form.
// Two trees that encode identically hash identically, so an unchanged file
// can be skipped on re-index.
func ContentHash(tree any) (string, error) {
	b, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(b)), nil
}
