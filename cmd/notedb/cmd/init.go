package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notedb/notedb/internal/config"
	"github.com/notedb/notedb/internal/errors"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration to the notes root",
		Long: `Init writes a commented ` + config.ConfigFileName + ` with default
settings into the notes root. Edit it to tune extensions, exclusions,
and worker counts. Sync works without one; init just makes the
defaults explicit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot()
			if err != nil {
				return err
			}

			cfgPath := filepath.Join(root, config.ConfigFileName)
			if _, err := os.Stat(cfgPath); err == nil {
				return errors.ValidationError("configuration already exists", nil).
					WithDetail("path", cfgPath).
					WithSuggestion("Edit the existing file, or remove it to start over")
			}

			cfg := config.NewConfig()
			if err := cfg.Save(root); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", cfgPath)
			return nil
		},
	}

	return cmd
}
