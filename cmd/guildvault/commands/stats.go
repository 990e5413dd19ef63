package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var chat string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print application statistics for a chat scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" {
				return fmt.Errorf("chat is required (--chat)")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(wire.Store.Statistics(chat))
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat scope to summarize")
	return cmd
}
