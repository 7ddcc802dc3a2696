package main

import (
	"fmt"

	"github.com/garyjia/eak-connector/internal/container"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := container.ProvideDatabase(&state.cfg.Database, state.logger)
		if err != nil {
			return err
		}
		defer bundle.DB.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", state.cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
