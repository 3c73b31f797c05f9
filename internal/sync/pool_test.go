package sync

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedb/notedb/internal/note"
	"github.com/notedb/notedb/internal/store"
)

func testItems(n int) []*WorkItem {
	items := make([]*WorkItem, n)
	for i := range items {
		items[i] = &WorkItem{
			Path: fmt.Sprintf("note-%02d.md", i),
			Hash: fmt.Sprintf("hash-%02d", i),
		}
	}
	return items
}

// okParse produces a minimal valid log without touching disk.
func okParse(_ *note.Parser, item *WorkItem) (*store.OpLog, error) {
	log := &store.OpLog{Path: item.Path}
	log.DeleteFile(item.Path)
	log.Insert(store.TableFiles, item.Path, "t", item.Hash, int64(0), int64(0))
	return log, nil
}

func waitResults(t *testing.T, ch <-chan []Result) []Result {
	t.Helper()
	select {
	case results := <-ch:
		return results
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch completion")
		return nil
	}
}

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p := NewPool(size)
	t.Cleanup(p.Close)
	return p
}

func TestPool_DispatchCompletesWithAllResults(t *testing.T) {
	p := newTestPool(t, 3)
	items := testItems(10)

	done := make(chan []Result, 1)
	job := p.Dispatch(items, okParse, func(rs []Result) { done <- rs })

	results := waitResults(t, done)
	require.Len(t, results, 10)

	seen := make(map[string]bool)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Log)
		seen[r.Path] = true
	}
	assert.Len(t, seen, 10, "each item completes exactly once")

	assert.Equal(t, JobDone, job.Status())
	completed, total := job.Progress()
	assert.Equal(t, 10, completed)
	assert.Equal(t, 10, total)
	assert.False(t, p.Busy())
}

func TestPool_EmptyBatchCompletesImmediately(t *testing.T) {
	p := newTestPool(t, 2)

	done := make(chan []Result, 1)
	p.Dispatch(nil, okParse, func(rs []Result) { done <- rs })

	assert.Empty(t, waitResults(t, done))
}

func TestPool_FailureIsolatedToFile(t *testing.T) {
	p := newTestPool(t, 2)
	items := testItems(4)

	fn := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		if item.Path == "note-02.md" {
			return nil, fmt.Errorf("synthetic parse failure")
		}
		return okParse(parser, item)
	}

	done := make(chan []Result, 1)
	p.Dispatch(items, fn, func(rs []Result) { done <- rs })

	results := waitResults(t, done)
	require.Len(t, results, 4)

	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "note-02.md", r.Path)
		} else {
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, succeeded)
}

func TestPool_KillDiscardsBatchWithoutCallback(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fn := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		started <- struct{}{}
		<-release
		return okParse(parser, item)
	}

	var callbacks atomic.Int32
	job := p.Dispatch(testItems(3), fn, func([]Result) { callbacks.Add(1) })

	<-started
	p.Kill()
	close(release)

	assert.Eventually(t, func() bool { return !p.Busy() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, JobKilled, job.Status())

	// The callback must never fire for a killed batch
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, callbacks.Load())
}

func TestPool_RedispatchKillsRunningBatch(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		started <- struct{}{}
		<-release
		return okParse(parser, item)
	}

	var firstCallbacks atomic.Int32
	first := p.Dispatch(testItems(2), slow, func([]Result) { firstCallbacks.Add(1) })
	<-started

	done := make(chan []Result, 1)
	second := p.Dispatch(testItems(2), okParse, func(rs []Result) { done <- rs })

	assert.Equal(t, JobKilled, first.Status())

	close(release)
	results := waitResults(t, done)
	assert.Len(t, results, 2)
	assert.Equal(t, JobDone, second.Status())
	assert.Zero(t, firstCallbacks.Load())
}

func TestPool_CacheSkipsReparseByContentHash(t *testing.T) {
	p := newTestPool(t, 1)
	items := testItems(5)

	var calls atomic.Int32
	counting := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		calls.Add(1)
		return okParse(parser, item)
	}

	done := make(chan []Result, 1)
	p.Dispatch(items, counting, func(rs []Result) { done <- rs })
	waitResults(t, done)
	require.Equal(t, int32(5), calls.Load())

	// Same items again: every one is a cache hit
	p.Dispatch(items, counting, func(rs []Result) { done <- rs })
	results := waitResults(t, done)
	require.Len(t, results, 5)
	assert.Equal(t, int32(5), calls.Load())
}

func TestPool_KillKeepResourcesPreservesCache(t *testing.T) {
	p := newTestPool(t, 1)
	warm := testItems(3)

	var calls atomic.Int32
	counting := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		calls.Add(1)
		return okParse(parser, item)
	}

	done := make(chan []Result, 1)
	p.Dispatch(warm, counting, func(rs []Result) { done <- rs })
	waitResults(t, done)
	require.Equal(t, int32(3), calls.Load())

	// A second batch stalls and gets killed with resources kept
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	stall := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		started <- struct{}{}
		<-release
		return okParse(parser, item)
	}
	other := []*WorkItem{{Path: "other.md", Hash: "other-hash"}}
	p.Dispatch(other, stall, func([]Result) {})
	<-started
	p.KillKeepResources()
	close(release)
	assert.Eventually(t, func() bool { return !p.Busy() }, 2*time.Second, 10*time.Millisecond)

	// The warm items are still cached
	p.Dispatch(warm, counting, func(rs []Result) { done <- rs })
	waitResults(t, done)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_KillDropsCache(t *testing.T) {
	p := newTestPool(t, 1)
	warm := testItems(3)

	var calls atomic.Int32
	counting := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		calls.Add(1)
		return okParse(parser, item)
	}

	done := make(chan []Result, 1)
	p.Dispatch(warm, counting, func(rs []Result) { done <- rs })
	waitResults(t, done)
	require.Equal(t, int32(3), calls.Load())

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	stall := func(parser *note.Parser, item *WorkItem) (*store.OpLog, error) {
		started <- struct{}{}
		<-release
		return okParse(parser, item)
	}
	p.Dispatch([]*WorkItem{{Path: "other.md", Hash: "other-hash"}}, stall, func([]Result) {})
	<-started
	p.Kill()
	close(release)
	assert.Eventually(t, func() bool { return !p.Busy() }, 2*time.Second, 10*time.Millisecond)

	// Full kill purged the caches, everything re-parses
	p.Dispatch(warm, counting, func(rs []Result) { done <- rs })
	waitResults(t, done)
	assert.Equal(t, int32(6), calls.Load())
}

func TestPool_CacheHitCarriesCurrentTimes(t *testing.T) {
	p := newTestPool(t, 1)
	base := time.Unix(1_700_000_000, 0)

	filesArgs := func(rs []Result) []any {
		for _, op := range rs[0].Log.Ops {
			if op.Kind == store.OpKindInsert && op.Table == store.TableFiles {
				return op.Args
			}
		}
		return nil
	}

	var calls atomic.Int32
	timed := func(_ *note.Parser, it *WorkItem) (*store.OpLog, error) {
		calls.Add(1)
		log := &store.OpLog{Path: it.Path}
		log.DeleteFile(it.Path)
		log.Insert(store.TableFiles, it.Path, "t", it.Hash, it.Atime.Unix(), it.Mtime.Unix())
		return log, nil
	}

	done := make(chan []Result, 1)
	item := &WorkItem{Path: "a.md", Hash: "same-hash", Atime: base, Mtime: base}
	p.Dispatch([]*WorkItem{item}, timed, func(rs []Result) { done <- rs })
	first := waitResults(t, done)
	require.Equal(t, base.Unix(), filesArgs(first)[4])

	// Same content with a newer mtime: the cache must not resurrect
	// the times of the dispatch that built the entry
	touched := &WorkItem{
		Path:  "a.md",
		Hash:  "same-hash",
		Atime: base.Add(10 * time.Second),
		Mtime: base.Add(5 * time.Second),
	}
	p.Dispatch([]*WorkItem{touched}, timed, func(rs []Result) { done <- rs })
	second := waitResults(t, done)

	assert.Equal(t, int32(1), calls.Load(), "unchanged content is not re-parsed")
	args := filesArgs(second)
	require.NotNil(t, args)
	assert.Equal(t, touched.Atime.Unix(), args[3])
	assert.Equal(t, touched.Mtime.Unix(), args[4])
}

func TestPool_KillJobAfterCompletionIsNoOp(t *testing.T) {
	p := newTestPool(t, 1)

	done := make(chan []Result, 1)
	job := p.Dispatch(testItems(2), okParse, func(rs []Result) { done <- rs })
	require.Len(t, waitResults(t, done), 2)

	assert.False(t, p.killJob(job, true), "a finished batch must not report as killed")
	assert.Equal(t, JobDone, job.Status())
}

func TestPartition_CoversAllItemsOnce(t *testing.T) {
	items := testItems(11)

	var total int
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		chunk := partition(items, 4, i)
		total += len(chunk)
		for _, item := range chunk {
			assert.False(t, seen[item.Path], "item assigned twice")
			seen[item.Path] = true
		}
	}
	assert.Equal(t, 11, total)
}
