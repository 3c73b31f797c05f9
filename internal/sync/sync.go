package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/notedb/notedb/internal/config"
	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/note"
	"github.com/notedb/notedb/internal/scanner"
	"github.com/notedb/notedb/internal/store"
	"github.com/notedb/notedb/internal/ui"
)

// Dependencies carries everything a Syncer needs. Config, Store,
// Scanner, and Pool are required; Renderer defaults to a silent one.
type Dependencies struct {
	Config   *config.Config
	Store    *store.Store
	Scanner  *scanner.Scanner
	Pool     *Pool
	Renderer ui.Renderer
}

// Stats summarizes one sync run.
type Stats struct {
	Scanned  int
	Modified int
	Parsed   int
	Purged   int
	Failed   int
	Ops      int
	Duration time.Duration
	Timings  ui.StageTimings
}

// Syncer drives the pipeline end to end: enumerate, detect, purge,
// dispatch, merge.
type Syncer struct {
	root     string
	cfg      *config.Config
	store    *store.Store
	scanner  *scanner.Scanner
	pool     *Pool
	renderer ui.Renderer
}

// NewSyncer validates the dependencies and builds a Syncer for the
// given notes root.
func NewSyncer(root string, deps Dependencies) (*Syncer, error) {
	if root == "" {
		return nil, errors.ValidationError("notes root is required", nil)
	}
	if deps.Config == nil {
		return nil, errors.ValidationError("config is required", nil)
	}
	if deps.Store == nil {
		return nil, errors.ValidationError("store is required", nil)
	}
	if deps.Scanner == nil {
		return nil, errors.ValidationError("scanner is required", nil)
	}
	if deps.Pool == nil {
		return nil, errors.ValidationError("pool is required", nil)
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NewPlainRenderer(ui.Config{Output: io.Discard, NoColor: true, Quiet: true})
	}

	return &Syncer{
		root:     root,
		cfg:      deps.Config,
		store:    deps.Store,
		scanner:  deps.Scanner,
		pool:     deps.Pool,
		renderer: renderer,
	}, nil
}

// Sync runs one incremental sync. With force, the database is reset
// first and every file re-parsed. Per-file parse failures degrade the
// run; enumeration, detection, and merge failures abort it.
func (s *Syncer) Sync(ctx context.Context, force bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	lock := NewSessionLock(s.cfg.LockPath(s.root))
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if force {
		slog.Info("sync_force_reset", slog.String("database", s.store.Path()))
		if err := s.store.Reset(ctx); err != nil {
			return nil, err
		}
	}

	// Stage 1: enumerate
	s.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScan, Message: "enumerating notes"})
	stageStart := time.Now()

	files, err := s.scanner.List(ctx, scanner.Options{
		RootDir:           s.root,
		Extensions:        s.cfg.Sync.Extensions,
		EncryptedSuffixes: s.cfg.Sync.EncryptedSuffixes,
		ExcludePatterns:   s.cfg.Paths.Exclude,
		MaxFileSize:       s.cfg.Sync.MaxFileSize,
		FollowSymlinks:    s.cfg.Sync.FollowSymlinks,
	})
	if err != nil {
		return nil, err
	}
	stats.Scanned = len(files)
	stats.Timings.Scan = time.Since(stageStart)

	slog.Info("sync_scan_complete",
		slog.Int("files", len(files)),
		slog.Duration("elapsed", stats.Timings.Scan),
	)

	// Stage 2: detect changes
	s.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageDetect, Message: "detecting changes"})
	stageStart = time.Now()

	indexed, err := s.store.ModTimes(ctx)
	if err != nil {
		return nil, err
	}
	changes := Detect(files, indexed)
	stats.Modified = len(changes.Modified)
	stats.Timings.Detect = time.Since(stageStart)

	slog.Info("sync_detect_complete",
		slog.Int("modified", len(changes.Modified)),
		slog.Int("stale", len(changes.Stale)),
		slog.Duration("elapsed", stats.Timings.Detect),
	)

	// Stale rows are purged in their own transaction, before dispatch,
	// so a later batch failure cannot resurrect deleted files.
	if len(changes.Stale) > 0 {
		purge, err := Merge(ctx, s.store, changes.Stale, nil)
		if err != nil {
			s.renderer.AddError(ui.ErrorEvent{Err: err})
			return nil, err
		}
		stats.Purged = purge.Purged
	}

	if len(changes.Modified) == 0 {
		return s.finish(ctx, stats, start)
	}

	// Stage 3: parse in parallel
	stageStart = time.Now()
	items, failures, err := BuildWorkItems(ctx, changes.Modified, s.cfg.EffectiveWorkers())
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		stats.Failed++
		s.renderer.AddError(ui.ErrorEvent{File: f.Path, Err: f.Err, IsWarn: true})
		slog.Warn("sync_hash_failed", slog.String("path", f.Path), slog.String("error", f.Err.Error()))
	}

	results, err := s.runBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	stats.Timings.Parse = time.Since(stageStart)

	// Stage 4: merge
	s.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageMerge, Message: "merging into index"})
	stageStart = time.Now()

	logs := make([]*store.OpLog, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			stats.Failed++
			s.renderer.AddError(ui.ErrorEvent{File: r.Path, Err: r.Err, IsWarn: true})
			slog.Warn("sync_parse_failed",
				slog.String("path", r.Path),
				slog.String("error", r.Err.Error()),
			)
			continue
		}
		logs = append(logs, r.Log)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Path < logs[j].Path })

	merge, err := Merge(ctx, s.store, nil, logs)
	if err != nil {
		s.renderer.AddError(ui.ErrorEvent{Err: err})
		return nil, err
	}
	stats.Parsed = merge.Files
	stats.Ops = merge.Ops
	stats.Timings.Merge = time.Since(stageStart)

	return s.finish(ctx, stats, start)
}

// runBatch dispatches items and waits for completion, a watchdog
// timeout, or context cancellation.
func (s *Syncer) runBatch(ctx context.Context, items []*WorkItem) ([]Result, error) {
	resultCh := make(chan []Result, 1)
	job := s.pool.Dispatch(items, s.parseItem, func(results []Result) {
		resultCh <- results
	})

	watchdog := NewWatchdog(s.pool, s.cfg.Sync.WatchdogPoll.Std(), s.cfg.Sync.WatchdogDeadline.Std())
	timeoutCh := watchdog.Watch(ctx, job)

	progress := time.NewTicker(200 * time.Millisecond)
	defer progress.Stop()

	for {
		select {
		case results := <-resultCh:
			return results, nil

		case err, ok := <-timeoutCh:
			if !ok {
				// Watchdog stopped on its own, results are on the way
				timeoutCh = nil
				continue
			}
			return nil, err

		case <-progress.C:
			done, total := job.Progress()
			s.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageParse,
				Current: done,
				Total:   total,
			})

		case <-ctx.Done():
			s.pool.killJob(job, false)
			return nil, ctx.Err()
		}
	}
}

// parseItem is the per-file ParseFunc run inside workers.
func (s *Syncer) parseItem(p *note.Parser, item *WorkItem) (*store.OpLog, error) {
	var content []byte
	if !item.Encrypted {
		var err error
		content, err = os.ReadFile(item.AbsPath)
		if err != nil {
			return nil, errors.New(errors.ErrCodeParseFailed,
				fmt.Sprintf("cannot read %s", item.Path), err)
		}
	}

	in := &note.Input{
		Path:      item.Path,
		Content:   content,
		Hash:      item.Hash,
		Mtime:     item.Mtime,
		Atime:     item.Atime,
		Encrypted: item.Encrypted,
	}

	log := &store.OpLog{Path: item.Path}
	if err := note.RecordOps(p, in, log); err != nil {
		return nil, err
	}
	return log, nil
}

func (s *Syncer) finish(ctx context.Context, stats *Stats, start time.Time) (*Stats, error) {
	if err := s.store.SetState(ctx, store.StateLastSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("sync_state_write_failed", slog.String("error", err.Error()))
	}

	stats.Duration = time.Since(start)

	s.renderer.Complete(ui.CompletionStats{
		Scanned:  stats.Scanned,
		Parsed:   stats.Parsed,
		Purged:   stats.Purged,
		Failed:   stats.Failed,
		Ops:      stats.Ops,
		Duration: stats.Duration,
		Stages:   stats.Timings,
	})

	slog.Info("sync_complete",
		slog.Int("scanned", stats.Scanned),
		slog.Int("modified", stats.Modified),
		slog.Int("parsed", stats.Parsed),
		slog.Int("purged", stats.Purged),
		slog.Int("failed", stats.Failed),
		slog.Int("ops", stats.Ops),
		slog.Duration("elapsed", stats.Duration),
	)

	return stats, nil
}
