package sync

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/notedb/notedb/internal/note"
	"github.com/notedb/notedb/internal/store"
)

// parseCacheSize bounds each worker's parse-result cache.
const parseCacheSize = 512

// ParseFunc turns one work item into an operation log, using the
// worker-owned parser.
type ParseFunc func(p *note.Parser, item *WorkItem) (*store.OpLog, error)

// Result is one per-file outcome from a worker.
type Result struct {
	Path string
	Log  *store.OpLog
	Err  error
}

// CompletionFunc receives every per-file result of one batch. It is
// invoked exactly once per dispatched batch, and never for a killed one.
type CompletionFunc func(results []Result)

// JobStatus is the lifecycle state of one dispatched batch.
type JobStatus int32

const (
	// JobRunning means workers are still processing items.
	JobRunning JobStatus = iota
	// JobDone means every item completed and the callback ran.
	JobDone
	// JobKilled means the batch was force-terminated; its results were
	// discarded and the callback will not run.
	JobKilled
)

// Job is the handle for one dispatched batch.
type Job struct {
	id        int
	total     int
	started   time.Time
	status    atomic.Int32
	completed atomic.Int64
	cancel    chan struct{}
}

// Status returns the batch status.
func (j *Job) Status() JobStatus {
	return JobStatus(j.status.Load())
}

// Elapsed returns the wall-clock time since dispatch.
func (j *Job) Elapsed() time.Duration {
	return time.Since(j.started)
}

// Progress returns completed and total item counts.
func (j *Job) Progress() (done, total int) {
	return int(j.completed.Load()), j.total
}

// Pool runs parse batches on persistent worker goroutines. Each worker
// owns a Parser and an LRU cache of parse results keyed by content
// hash; the cache survives KillKeepResources so a re-dispatch after a
// timeout does not repeat finished work.
//
// At most one batch is active at a time. Dispatching while a batch is
// running kills the running batch first.
type Pool struct {
	mu      sync.Mutex
	size    int
	workers []*worker
	active  *Job
	nextID  int
}

type worker struct {
	id     int
	parser *note.Parser
	cache  *lru.Cache[string, *store.OpLog]
	tasks  chan task
	quit   chan struct{}
	done   chan struct{}
}

type task struct {
	job   *Job
	items []*WorkItem
	fn    ParseFunc
	out   chan<- Result
}

// NewPool creates a pool with size persistent workers (0 = NumCPU).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p := &Pool{size: size}
	for i := 0; i < size; i++ {
		cache, err := lru.New[string, *store.OpLog](parseCacheSize)
		if err != nil {
			cache = nil
		}
		w := &worker{
			id:     i,
			parser: note.NewParser(),
			cache:  cache,
			tasks:  make(chan task),
			quit:   make(chan struct{}),
			done:   make(chan struct{}),
		}
		p.workers = append(p.workers, w)
		go w.run()
	}
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Busy reports whether a batch is currently running.
func (p *Pool) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Active returns the running job, or nil.
func (p *Pool) Active() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Dispatch partitions items across the workers and starts the batch.
// complete receives all results exactly once, unless the batch is
// killed first. A batch already running is killed and discarded.
func (p *Pool) Dispatch(items []*WorkItem, fn ParseFunc, complete CompletionFunc) *Job {
	p.mu.Lock()

	if p.active != nil {
		slog.Warn("pool_redispatch_kills_batch",
			slog.Int("job_id", p.active.id),
		)
		p.killLocked(false)
	}

	p.nextID++
	job := &Job{
		id:      p.nextID,
		total:   len(items),
		started: time.Now(),
		cancel:  make(chan struct{}),
	}
	job.status.Store(int32(JobRunning))
	p.active = job

	out := make(chan Result, len(items))

	for i, w := range p.workers {
		chunk := partition(items, p.size, i)
		if len(chunk) == 0 {
			continue
		}
		t := task{job: job, items: chunk, fn: fn, out: out}
		go func(w *worker, t task) {
			select {
			case w.tasks <- t:
			case <-t.job.cancel:
			}
		}(w, t)
	}

	p.mu.Unlock()

	go p.collect(job, out, len(items), complete)

	slog.Debug("pool_dispatch",
		slog.Int("job_id", job.id),
		slog.Int("items", len(items)),
		slog.Int("workers", p.size),
	)

	return job
}

// collect gathers results and fires the completion callback. A killed
// job's collector exits without calling back.
func (p *Pool) collect(job *Job, out <-chan Result, total int, complete CompletionFunc) {
	results := make([]Result, 0, total)
	for len(results) < total {
		select {
		case r := <-out:
			results = append(results, r)
		case <-job.cancel:
			return
		}
	}

	// The swap arbitrates against a kill landing right after the last
	// result arrived: if the kill won, the batch counts as killed and
	// its results are discarded.
	if !job.status.CompareAndSwap(int32(JobRunning), int32(JobDone)) {
		return
	}

	p.mu.Lock()
	if p.active == job {
		p.active = nil
	}
	p.mu.Unlock()

	if complete != nil {
		complete(results)
	}
}

// Kill force-terminates the running batch and discards worker caches.
// The batch's completion callback will not run.
func (p *Pool) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked(false)
}

// KillKeepResources force-terminates the running batch but preserves
// the per-worker caches, so already-parsed files are free on the next
// dispatch. Used by the watchdog, where a retry is expected.
func (p *Pool) KillKeepResources() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked(true)
}

// killJob kills job if it is still the active batch. Reports whether
// the batch was actually killed; one that already finished is left
// alone, its results intact.
func (p *Pool) killJob(job *Job, keepResources bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != job {
		return false
	}
	return p.killLocked(keepResources)
}

func (p *Pool) killLocked(keepResources bool) bool {
	job := p.active
	if job == nil {
		return false
	}

	// Mirror of the swap in collect: a batch whose last result just
	// landed completes normally, the kill becomes a no-op.
	if !job.status.CompareAndSwap(int32(JobRunning), int32(JobKilled)) {
		p.active = nil
		return false
	}

	close(job.cancel)
	p.active = nil

	if !keepResources {
		for _, w := range p.workers {
			if w.cache != nil {
				w.cache.Purge()
			}
		}
	}

	slog.Info("pool_batch_killed",
		slog.Int("job_id", job.id),
		slog.Bool("keep_resources", keepResources),
	)
	return true
}

// Close kills any running batch and stops the workers.
func (p *Pool) Close() {
	p.Kill()
	for _, w := range p.workers {
		close(w.quit)
	}
	for _, w := range p.workers {
		<-w.done
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case t := <-w.tasks:
			w.process(t)
		}
	}
}

// process handles one task. Termination is cooperative: the cancel
// check sits between items, never inside one, so a kill cannot corrupt
// a parse in flight.
func (w *worker) process(t task) {
	for _, item := range t.items {
		select {
		case <-t.job.cancel:
			return
		default:
		}

		var log *store.OpLog
		var err error

		key := item.Hash + "\x00" + item.Path
		if w.cache != nil {
			if cached, ok := w.cache.Get(key); ok {
				// The cached parse is valid for this content, but its
				// files row carries the times of the dispatch that built
				// it. Replay with the current item's times so the stored
				// mtime tracks disk.
				log = cached.Retime(item.Atime, item.Mtime)
			}
		}
		if log == nil {
			log, err = t.fn(w.parser, item)
			if err == nil && w.cache != nil {
				w.cache.Add(key, log)
			}
		}

		select {
		case t.out <- Result{Path: item.Path, Log: log, Err: err}:
			t.job.completed.Add(1)
		case <-t.job.cancel:
			return
		}
	}
}

// partition returns the i-th of n contiguous chunks of items.
func partition(items []*WorkItem, n, i int) []*WorkItem {
	total := len(items)
	base := total / n
	rem := total % n

	start := i*base + min(i, rem)
	size := base
	if i < rem {
		size++
	}
	return items[start : start+size]
}
