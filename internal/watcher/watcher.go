// Package watcher observes a notes root for file changes and emits
// debounced event batches suitable for incremental re-syncs.
package watcher

import (
	"time"
)

// Operation is the kind of change observed on a note file.
type Operation int

const (
	// OpCreate indicates a new note appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing note changed.
	OpModify
	// OpDelete indicates a note was removed.
	OpDelete
	// OpRename indicates a note was renamed away. The new name, if it is
	// still a note, arrives as a separate create event.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a single observed change, with the path relative to the
// watched root.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures watching behavior.
type Options struct {
	// Extensions lists note extensions to watch (e.g. ".md").
	Extensions []string

	// EncryptedSuffixes lists encrypted-variant suffixes (e.g. ".gpg").
	EncryptedSuffixes []string

	// Debounce is how long to coalesce events before emitting a batch.
	// Default: 2s.
	Debounce time.Duration

	// BufferSize is the capacity of the batch channel. Default: 64.
	BufferSize int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 64
	}
	return o
}
