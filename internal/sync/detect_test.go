package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notedb/notedb/internal/scanner"
)

func fileAt(path string, mtime time.Time) *scanner.FileInfo {
	return &scanner.FileInfo{Path: path, AbsPath: "/notes/" + path, ModTime: mtime}
}

func modifiedPaths(c Changes) []string {
	out := make([]string, len(c.Modified))
	for i, f := range c.Modified {
		out[i] = f.Path
	}
	return out
}

func TestDetect_NewAndChangedFiles(t *testing.T) {
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)
	t3 := time.Unix(3000, 0)
	t4 := time.Unix(4000, 0)

	files := []*scanner.FileInfo{
		fileAt("a.md", t1),
		fileAt("b.md", t3),
		fileAt("c.md", t4),
	}
	indexed := map[string]time.Time{
		"a.md": t1,
		"b.md": t2,
	}

	changes := Detect(files, indexed)

	assert.Equal(t, []string{"b.md", "c.md"}, modifiedPaths(changes))
	assert.Empty(t, changes.Stale)
}

func TestDetect_DeletedFiles(t *testing.T) {
	t1 := time.Unix(1000, 0)

	files := []*scanner.FileInfo{fileAt("a.md", t1)}
	indexed := map[string]time.Time{
		"a.md": t1,
		"b.md": time.Unix(2000, 0),
		"z.md": time.Unix(3000, 0),
	}

	changes := Detect(files, indexed)

	assert.Empty(t, changes.Modified)
	assert.Equal(t, []string{"b.md", "z.md"}, changes.Stale)
}

func TestDetect_SubSecondDifferenceIsUnchanged(t *testing.T) {
	stored := time.Unix(1000, 0)
	onDisk := time.Unix(1000, 734_000_000)

	changes := Detect([]*scanner.FileInfo{fileAt("a.md", onDisk)},
		map[string]time.Time{"a.md": stored})

	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Stale)
}

func TestDetect_WholeSecondDifferenceIsModified(t *testing.T) {
	stored := time.Unix(1000, 0)
	onDisk := time.Unix(1001, 0)

	changes := Detect([]*scanner.FileInfo{fileAt("a.md", onDisk)},
		map[string]time.Time{"a.md": stored})

	assert.Equal(t, []string{"a.md"}, modifiedPaths(changes))
}

func TestDetect_EmptyInputs(t *testing.T) {
	changes := Detect(nil, nil)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Stale)

	changes = Detect(nil, map[string]time.Time{"gone.md": time.Unix(1, 0)})
	assert.Equal(t, []string{"gone.md"}, changes.Stale)
}
