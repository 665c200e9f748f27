package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SchemaFingerprint hashes the indexed field set and the embedding dimension
// into a stable hex string. Any change to either invalidates the persisted
// indexes, which is surfaced as ErrSchemaStale on open.
func SchemaFingerprint(fields []string, dimensions int) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{'\n'})
	}
	fmt.Fprintf(h, "dimensions:%d\n", dimensions)
	return hex.EncodeToString(h.Sum(nil))
}

// readSchemaMarker returns the fingerprint stored at path, or "" when the
// marker does not exist.
func readSchemaMarker(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read schema marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// writeSchemaMarker persists the fingerprint atomically.
func writeSchemaMarker(path, fingerprint string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create schema marker dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fingerprint+"\n"), 0644); err != nil {
		return fmt.Errorf("write schema marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename schema marker: %w", err)
	}
	return nil
}
