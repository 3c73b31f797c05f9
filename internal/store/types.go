// Package store provides the SQLite index database for notedb and the
// deferred-operation protocol that parse workers record against.
package store

import (
	"time"
)

// CurrentSchemaVersion is incremented on schema changes.
const CurrentSchemaVersion = 1

// Table names of the index schema.
const (
	TableFiles     = "files"
	TableAliases   = "aliases"
	TableTags      = "tags"
	TableLinks     = "links"
	TableCitations = "citations"
	TableRefs      = "refs"
)

// tableColumns maps each table to its column order. Insert operations
// carry positional args and are validated against this.
var tableColumns = map[string][]string{
	TableFiles:     {"path", "title", "hash", "atime", "mtime"},
	TableAliases:   {"path", "alias"},
	TableTags:      {"path", "tag"},
	TableLinks:     {"source", "dest", "kind", "pos"},
	TableCitations: {"path", "cite_key", "pos"},
	TableRefs:      {"path", "ref", "kind"},
}

// FileRecord is one row of the files table. Times are stored at second
// precision, which is what change detection compares against.
type FileRecord struct {
	Path  string
	Title string
	Hash  string
	Atime time.Time
	Mtime time.Time
}

// FileDetail is the full indexed view of one note, for inspection.
type FileDetail struct {
	Record    FileRecord
	Aliases   []string
	Tags      []string
	Links     []LinkRow
	Citations []CitationRow
	Refs      []RefRow
}

// LinkRow is one row of the links table.
type LinkRow struct {
	Source string
	Dest   string
	Kind   string
	Pos    int
}

// CitationRow is one row of the citations table.
type CitationRow struct {
	Path    string
	CiteKey string
	Pos     int
}

// RefRow is one row of the refs table.
type RefRow struct {
	Path string
	Ref  string
	Kind string
}

// State keys stored in the meta table.
const (
	StateSchemaVersion = "schema_version"
	StateLastSync      = "last_sync"
)
