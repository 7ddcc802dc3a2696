package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/garyjia/eak-connector/internal/application/service"
	"github.com/garyjia/eak-connector/internal/container"
	"github.com/garyjia/eak-connector/internal/infrastructure/worker"
	"github.com/spf13/cobra"
)

var syncJSON bool

var syncCmd = &cobra.Command{
	Use:       "sync <vendor-bills|partners|attachments>",
	Short:     "Run one sync job over every configured company",
	Example:   "  eak sync vendor-bills\n  eak sync partners --json",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{worker.JobVendorBills, worker.JobPartners, worker.JobAttachments},
	RunE:      runSync,
}

var billCmd = &cobra.Command{
	Use:   "bill",
	Short: "Vendor bill operations",
}

var billAttachmentCmd = &cobra.Command{
	Use:   "fetch-attachment <bill-id>",
	Short: "Fetch the eAK PDF of one imported vendor bill",
	Args:  cobra.ExactArgs(1),
	RunE:  runBillAttachment,
}

func init() {
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the full run report as JSON")
	rootCmd.AddCommand(syncCmd)

	billCmd.AddCommand(billAttachmentCmd)
	rootCmd.AddCommand(billCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	job := args[0]
	return state.withContainer(cmd.Context(), false, func(ctx context.Context, c *container.Container) error {
		report, err := c.Workers().RunNow(ctx, job)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if syncJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printNotifications(out, report.Notifications())
		}

		if failed := report.Failed(); failed > 0 {
			return fmt.Errorf("%s: %d of %d companies failed", job, failed, len(report.Outcomes))
		}
		return nil
	})
}

func runBillAttachment(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid bill id %q", args[0])
	}
	return state.withContainer(cmd.Context(), false, func(ctx context.Context, c *container.Container) error {
		outcome, err := c.Services().Attachments.FetchForBill(ctx, id)
		if err != nil {
			return err
		}
		printNotifications(cmd.OutOrStdout(), []service.Notification{outcome.Notification("eAK attachment")})
		return nil
	})
}

func printNotifications(w io.Writer, ns []service.Notification) {
	if len(ns) == 0 {
		fmt.Fprintln(w, "Nothing to do: no company has eAK configured")
		return
	}
	for _, n := range ns {
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Type, n.Title, n.Message)
	}
}
