package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/eak-connector/internal/container"
	"github.com/garyjia/eak-connector/internal/report"
	"github.com/spf13/cobra"
)

var (
	logsSince  string
	logsLimit  int
	logsOutput string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Sync log operations",
}

var logsExportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export sync log entries to an xlsx workbook",
	Example: "  eak logs export --since 2024-03-01 --out march.xlsx",
	Args:    cobra.NoArgs,
	RunE:    runLogsExport,
}

func init() {
	logsExportCmd.Flags().StringVar(&logsSince, "since", "", "only entries created at or after this date (YYYY-MM-DD)")
	logsExportCmd.Flags().IntVar(&logsLimit, "limit", 5000, "maximum number of entries")
	logsExportCmd.Flags().StringVarP(&logsOutput, "out", "o", "eak_sync_log.xlsx", "output file")

	logsCmd.AddCommand(logsExportCmd)
	rootCmd.AddCommand(logsCmd)
}

func runLogsExport(cmd *cobra.Command, args []string) error {
	var since time.Time
	if logsSince != "" {
		t, err := time.Parse("2006-01-02", logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since date, use YYYY-MM-DD: %w", err)
		}
		since = t
	}
	if logsLimit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	return state.withContainer(cmd.Context(), false, func(ctx context.Context, c *container.Container) error {
		entries, err := c.Repositories().SyncLogs.List(ctx, since, logsLimit)
		if err != nil {
			return err
		}

		f, err := os.Create(logsOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", logsOutput, err)
		}
		if err := report.NewSyncLogExporter(state.logger).Write(f, entries); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), logsOutput)
		return nil
	})
}
