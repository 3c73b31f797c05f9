// Package cmd provides the CLI commands for notedb.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notedb/notedb/internal/config"
	"github.com/notedb/notedb/internal/errors"
	"github.com/notedb/notedb/internal/logging"
	"github.com/notedb/notedb/internal/ui"
	"github.com/notedb/notedb/pkg/version"
)

var (
	debugMode      bool
	noColor        bool
	quiet          bool
	notesRoot      string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the notedb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notedb",
		Short: "SQLite index for a plain-text notes directory",
		Long: `notedb maintains a queryable SQLite index of a directory of
Markdown and Org notes: titles, aliases, tags, links, and citations.

Run 'notedb sync' after editing notes, or 'notedb watch' to keep the
index current automatically.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("notedb version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.notedb/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	cmd.PersistentFlags().StringVarP(&notesRoot, "root", "r", ".", "Notes root directory")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any failure with its hint.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+errors.FormatUser(err))
	}
	return err
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return errors.IOError("cannot set up logging", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// resolveRoot turns the --root flag into an absolute notes root.
func resolveRoot() (string, error) {
	root, err := filepath.Abs(notesRoot)
	if err != nil {
		return "", errors.New(errors.ErrCodeInvalidPath, "cannot resolve notes root", err)
	}
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return "", errors.New(errors.ErrCodeInvalidPath, "notes root is not a directory", statErr).
			WithDetail("root", root)
	}
	return root, nil
}

// loadConfig loads the notes root configuration, honoring defaults and
// environment overrides.
func loadConfig(root string) (*config.Config, error) {
	return config.Load(root)
}

// newRenderer builds the progress renderer for a command's output.
func newRenderer(cmd *cobra.Command) ui.Renderer {
	return ui.NewRenderer(
		ui.WithOutput(cmd.OutOrStdout()),
		ui.WithNoColor(noColor),
		ui.WithQuiet(quiet),
	)
}
