package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/scanner"
)

// WorkItem is one file handed to the pool. The hash and times are
// captured here, at dispatch, so every worker sees the same snapshot
// regardless of what happens to the file afterwards.
type WorkItem struct {
	Path      string
	AbsPath   string
	Hash      string
	Size      int64
	Mtime     time.Time
	Atime     time.Time
	Encrypted bool
}

// FileFailure is a per-file precompute error. These files are excluded
// from the batch; they never fail the sync.
type FileFailure struct {
	Path string
	Err  error
}

// BuildWorkItems hashes the modified set concurrently and returns the
// dispatch-ready items. Files that disappear or become unreadable
// between detection and here are reported as failures, not errors.
func BuildWorkItems(ctx context.Context, files []*scanner.FileInfo, workers int) ([]*WorkItem, []FileFailure, error) {
	if workers <= 0 {
		workers = 1
	}

	items := make([]*WorkItem, len(files))

	var mu sync.Mutex
	var failures []FileFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			hash, err := hashFile(f.AbsPath)
			if err != nil {
				mu.Lock()
				failures = append(failures, FileFailure{
					Path: f.Path,
					Err: errors.New(errors.ErrCodeParseFailed,
						fmt.Sprintf("cannot hash %s", f.Path), err),
				})
				mu.Unlock()
				return nil
			}

			items[i] = &WorkItem{
				Path:      f.Path,
				AbsPath:   f.AbsPath,
				Hash:      hash,
				Size:      f.Size,
				Mtime:     f.ModTime,
				Atime:     time.Now(),
				Encrypted: f.Encrypted,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Compact out the failed slots
	out := items[:0]
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}

	return out, failures, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
