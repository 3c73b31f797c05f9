package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the notes directory and re-sync on changes",
		Long: `Watch runs an initial sync, then observes the notes root for
changes. Rapid edits are debounced into one re-sync. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, cleanup, err := newSyncEnv(newRenderer(cmd))
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := env.syncer.Sync(ctx, false); err != nil {
				return err
			}

			w, err := watcher.NewFSWatcher(env.root, watcher.Options{
				Extensions:        env.cfg.Sync.Extensions,
				EncryptedSuffixes: env.cfg.Sync.EncryptedSuffixes,
				Debounce:          env.cfg.Watch.Debounce.Std(),
			})
			if err != nil {
				return err
			}
			defer w.Stop()

			watchErr := make(chan error, 1)
			go func() { watchErr <- w.Start(ctx) }()

			return runWatchLoop(ctx, env, w, watchErr)
		},
	}

	return cmd
}

// runWatchLoop re-syncs on every debounced batch until the context is
// cancelled or the watcher fails.
func runWatchLoop(ctx context.Context, env *syncEnv, w *watcher.FSWatcher, watchErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-watchErr:
			if err == nil || err == context.Canceled {
				return nil
			}
			return err

		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			slog.Info("watch_resync",
				slog.Int("events", len(batch)),
				slog.String("first", batch[0].Path),
			)
			if _, err := env.syncer.Sync(ctx, false); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Retryable failures (a concurrent sync, a slow batch)
				// leave the watch running for the next batch.
				if errors.IsRetryable(err) {
					slog.Warn("watch_resync_failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				return err
			}
		}
	}
}
