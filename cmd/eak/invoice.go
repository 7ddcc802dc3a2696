package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/garyjia/eak-connector/internal/container"
	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/garyjia/eak-connector/internal/domain/fault"
	"github.com/spf13/cobra"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Customer invoice operations",
}

var invoiceSubmitCmd = &cobra.Command{
	Use:   "submit <invoice-id>",
	Short: "Submit one customer invoice to eAK",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceSubmit,
}

func init() {
	invoiceCmd.AddCommand(invoiceSubmitCmd)
	rootCmd.AddCommand(invoiceCmd)
}

func runInvoiceSubmit(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid invoice id %q", args[0])
	}

	return state.withContainer(cmd.Context(), false, func(ctx context.Context, c *container.Container) error {
		result, err := c.Services().InvoiceExport.Submit(ctx, id)
		if err != nil {
			return errors.New(fault.Message(err))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "[%s] %s: %s\n", result.Notification.Type, result.Notification.Title, result.Notification.Message)
		if result.DocumentPath != "" {
			fmt.Fprintf(out, "document: %s\n", result.DocumentPath)
		}
		if result.State == entity.EAKStateError {
			return fmt.Errorf("invoice %d was rejected by eAK", id)
		}
		return nil
	})
}
