package models

import "time"

// ChangeKind is the type of a file change notification.
type ChangeKind string

const (
	// ChangeUpsert marks a created or modified file that must be (re)indexed.
	ChangeUpsert ChangeKind = "upsert"
	// ChangeDelete marks a removed file whose index entries must go away.
	ChangeDelete ChangeKind = "delete"
)

// ChangeEntry is one pending file change. Entries are coalesced by path while
// buffered: a later entry for the same path supersedes an earlier one.
type ChangeEntry struct {
	Kind      ChangeKind
	Path      string
	Timestamp time.Time
	// Retries counts failed apply attempts; entries exceeding the configured
	// bound are discarded rather than retried forever.
	Retries int
}

// NewChange returns a change entry for path stamped with the current time.
func NewChange(kind ChangeKind, path string) *ChangeEntry {
	return &ChangeEntry{Kind: kind, Path: NormalizePath(path), Timestamp: time.Now()}
}
