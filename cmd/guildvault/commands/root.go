package commands

import (
	"github.com/spf13/cobra"

	"guildvault/internal/app"
)

var (
	cfgPath string
	wire    *app.Wire
)

// Execute runs the guildvault CLI.
func Execute() error {
	root := &cobra.Command{
		Use:   "guildvault",
		Short: "Encrypted guild state store with an admin API and SQLite export",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			wire, err = app.NewWire(cfgPath)
			return err
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd(), exportCmd(), statsCmd())
	return root.Execute()
}
