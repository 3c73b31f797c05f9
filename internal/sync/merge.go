package sync

import (
	"context"
	"log/slog"

	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/store"
)

// MergeStats reports what one merge transaction applied.
type MergeStats struct {
	// Files is the number of operation logs applied.
	Files int
	// Ops is the number of individual operations replayed.
	Ops int
	// Purged is the number of stale paths removed.
	Purged int
}

// Merge applies the purge set and the operation logs in one
// transaction. Log order within a file is preserved exactly as
// recorded; any failure rolls the whole transaction back, leaving the
// database at its pre-merge state.
func Merge(ctx context.Context, st *store.Store, stale []string, logs []*store.OpLog) (*MergeStats, error) {
	tx, err := st.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stats := &MergeStats{}

	for _, path := range stale {
		if err := tx.DeleteFile(ctx, path); err != nil {
			return nil, errors.New(errors.ErrCodeMergeFailed,
				"purge failed, transaction rolled back", err).
				WithDetail("path", path)
		}
		stats.Purged++
	}

	for _, log := range logs {
		if err := log.Validate(); err != nil {
			return nil, errors.New(errors.ErrCodeMergeFailed,
				"malformed operation log, transaction rolled back", err).
				WithDetail("path", log.Path)
		}

		for _, op := range log.Ops {
			if err := tx.Apply(ctx, op); err != nil {
				return nil, errors.New(errors.ErrCodeMergeFailed,
					"merge failed, transaction rolled back", err).
					WithDetail("path", log.Path)
			}
			stats.Ops++
		}
		stats.Files++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Debug("merge_committed",
		slog.Int("files", stats.Files),
		slog.Int("ops", stats.Ops),
		slog.Int("purged", stats.Purged),
	)

	return stats, nil
}
