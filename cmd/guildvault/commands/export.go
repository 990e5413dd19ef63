package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rebuild the SQLite reporting mirror from the current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = wire.Settings.Storage.ExportPath
			}
			if path == "" {
				return fmt.Errorf("no export path configured (set storage.export_path or --out)")
			}
			if err := wire.Store.ExportSQLite(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Printf("Export written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "export file path (default storage.export_path)")
	return cmd
}
