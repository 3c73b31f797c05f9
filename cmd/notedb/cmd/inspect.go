package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notedb/notedb/internal/store"
)

// newInspectCmd creates the inspect command.
func newInspectCmd() *cobra.Command {
	var listFiles bool
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Show index contents",
		Long: `Without arguments, inspect prints row counts and the last sync
time. With a note path (relative to the notes root), it prints
everything indexed for that note, including backlinks. With --files it
lists indexed files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DatabasePath(root))
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if len(args) == 1 {
				return printFileDetail(ctx, out, st, args[0])
			}
			if listFiles {
				return printFileList(ctx, out, st, limit)
			}
			return printSummary(ctx, out, st)
		},
	}

	cmd.Flags().BoolVar(&listFiles, "files", false, "List indexed files")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of files to list")

	return cmd
}

func printSummary(ctx context.Context, out io.Writer, st *store.Store) error {
	counts, err := st.Counts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Database: %s\n", st.Path())
	for _, table := range []string{
		store.TableFiles, store.TableAliases, store.TableTags,
		store.TableLinks, store.TableCitations, store.TableRefs,
	} {
		fmt.Fprintf(out, "  %-10s %d\n", table, counts[table])
	}

	lastSync, err := st.GetState(ctx, store.StateLastSync)
	if err != nil {
		return err
	}
	if lastSync == "" {
		lastSync = "never"
	}
	fmt.Fprintf(out, "Last sync: %s\n", lastSync)
	return nil
}

func printFileList(ctx context.Context, out io.Writer, st *store.Store, limit int) error {
	files, err := st.ListFiles(ctx, limit)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintf(out, "%s\t%s\t%s\n", f.Path, f.Title, f.Mtime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printFileDetail(ctx context.Context, out io.Writer, st *store.Store, path string) error {
	detail, err := st.FileDetail(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Path:      %s\n", detail.Record.Path)
	fmt.Fprintf(out, "Title:     %s\n", detail.Record.Title)
	fmt.Fprintf(out, "Hash:      %s\n", detail.Record.Hash)
	fmt.Fprintf(out, "Modified:  %s\n", detail.Record.Mtime.Format("2006-01-02 15:04:05"))

	if len(detail.Aliases) > 0 {
		fmt.Fprintf(out, "Aliases:   %v\n", detail.Aliases)
	}
	if len(detail.Tags) > 0 {
		fmt.Fprintf(out, "Tags:      %v\n", detail.Tags)
	}
	for _, l := range detail.Links {
		fmt.Fprintf(out, "Link:      %s (%s, pos %d)\n", l.Dest, l.Kind, l.Pos)
	}
	for _, c := range detail.Citations {
		fmt.Fprintf(out, "Citation:  @%s (pos %d)\n", c.CiteKey, c.Pos)
	}
	for _, r := range detail.Refs {
		fmt.Fprintf(out, "Ref:       %s (%s)\n", r.Ref, r.Kind)
	}

	// Wiki links usually point at the stem, Markdown links at the
	// full path. Collect backlinks under both.
	seen := map[string]bool{}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, dest := range []string{path, stem} {
		backlinks, err := st.Backlinks(ctx, dest)
		if err != nil {
			return err
		}
		for _, b := range backlinks {
			if seen[b.Source] {
				continue
			}
			seen[b.Source] = true
			fmt.Fprintf(out, "Backlink:  %s (%s)\n", b.Source, b.Kind)
		}
	}

	return nil
}
