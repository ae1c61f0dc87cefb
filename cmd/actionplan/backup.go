package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/actionplan/internal/backup"
	"github.com/joss/actionplan/internal/config"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore plan data",
	}
	cmd.AddCommand(backupCreateCmd(), backupRestoreCmd())
	return cmd
}

func backupCreateCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Write a tar.gz archive of the database and exports",
		Run: func(cmd *cobra.Command, args []string) {
			if out == "" {
				stamp := time.Now().Format("20060102-150405")
				out = filepath.Join(config.GetPaths().Home, fmt.Sprintf("actionplan-%s.tar.gz", stamp))
			}
			mgr := backup.NewManager(config.DBPath(), config.GetPaths().Exports)
			meta, err := mgr.Export(out)
			if err != nil {
				fatalError(err)
			}
			fmt.Printf("backup written to %s (%d files)\n", out, len(meta.Files))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive path (default ~/.actionplan/actionplan-<ts>.tar.gz)")
	return cmd
}

func backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the database and exports from an archive",
		Long: `Restore replaces the current database with the archive's copy.
The previous database is kept alongside it with a .pre-restore suffix.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mgr := backup.NewManager(config.DBPath(), config.GetPaths().Exports)
			meta, err := mgr.Restore(args[0])
			if err != nil {
				fatalError(err)
			}
			fmt.Printf("restored %d files from backup taken %s\n",
				len(meta.Files), meta.CreatedAt.Format(time.RFC3339))
		},
	}
}
