package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notedb/notedb/internal/config"
	"github.com/notedb/notedb/internal/scanner"
	"github.com/notedb/notedb/internal/store"
	"github.com/notedb/notedb/internal/sync"
	"github.com/notedb/notedb/internal/ui"
)

// syncEnv bundles everything a sync-driving command needs.
type syncEnv struct {
	root   string
	cfg    *config.Config
	store  *store.Store
	pool   *sync.Pool
	syncer *sync.Syncer
}

// newSyncEnv opens the store and builds a ready Syncer for the notes
// root. Callers must call close when done.
func newSyncEnv(renderer ui.Renderer) (*syncEnv, func(), error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DatabasePath(root))
	if err != nil {
		return nil, nil, err
	}

	pool := sync.NewPool(cfg.EffectiveWorkers())

	syncer, err := sync.NewSyncer(root, sync.Dependencies{
		Config:   cfg,
		Store:    st,
		Scanner:  scanner.NewScanner(),
		Pool:     pool,
		Renderer: renderer,
	})
	if err != nil {
		pool.Close()
		_ = st.Close()
		return nil, nil, err
	}

	env := &syncEnv{root: root, cfg: cfg, store: st, pool: pool, syncer: syncer}
	cleanup := func() {
		pool.Close()
		_ = st.Close()
	}
	return env, cleanup, nil
}

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the index with the notes directory",
		Long: `Sync enumerates the notes root, re-parses files whose
modification time changed, and merges the results into the index in a
single transaction. Unchanged files are never re-parsed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, cleanup, err := newSyncEnv(newRenderer(cmd))
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err = env.syncer.Sync(ctx, force)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Reset the index and re-parse every note")

	return cmd
}
