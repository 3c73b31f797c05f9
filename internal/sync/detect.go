// Package sync implements the incremental index pipeline: change
// detection, parallel parsing into deferred operation logs, and the
// transactional merge, supervised by a worker pool and watchdog.
package sync

import (
	"sort"
	"time"

	"github.com/notedb/notedb/internal/scanner"
)

// Changes is the outcome of diffing the live file set against the
// stored records.
type Changes struct {
	// Modified holds files that are new on disk or whose mtime differs
	// from the indexed one. These need a re-parse.
	Modified []*scanner.FileInfo

	// Stale holds indexed paths that no longer exist on disk. Their
	// rows are purged.
	Stale []string
}

// Detect compares the enumerated files against the indexed mtimes.
//
// Filesystems and the database store timestamps at different
// precisions, so the comparison truncates both sides to whole seconds;
// a sub-second difference alone never marks a file modified.
func Detect(files []*scanner.FileInfo, indexed map[string]time.Time) Changes {
	var changes Changes

	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f.Path] = true

		stored, ok := indexed[f.Path]
		if !ok {
			changes.Modified = append(changes.Modified, f)
			continue
		}
		if !f.ModTime.Truncate(time.Second).Equal(stored.Truncate(time.Second)) {
			changes.Modified = append(changes.Modified, f)
		}
	}

	for path := range indexed {
		if !onDisk[path] {
			changes.Stale = append(changes.Stale, path)
		}
	}
	sort.Strings(changes.Stale)

	return changes
}
