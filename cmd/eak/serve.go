package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/eak-connector/internal/container"
	httpapi "github.com/garyjia/eak-connector/internal/interfaces/http"
	"github.com/garyjia/eak-connector/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled sync workers and the admin HTTP API",
	Long: `serve starts the vendor bill, partner status and attachment workers on
their configured intervals and exposes the admin API:

  GET  /health
  POST /api/sync/{vendor-bills|partners|attachments}
  POST /api/invoices/:id/submit
  POST /api/vendor-bills/:id/attachment
  GET  /api/sync-logs
  GET  /api/sync-logs/export.xlsx`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := state.logger
	logger.Info("Starting eAK connector",
		zap.String("version", version),
		zap.Int("port", state.cfg.Server.Port),
		zap.Bool("workers_enabled", state.cfg.EAK.WorkersEnabled))

	return state.withContainer(ctx, true, func(ctx context.Context, c *container.Container) error {
		cfg := c.Config()
		handlers := httpapi.NewHandlers(httpapi.HandlerDeps{
			Runner:      c.Workers(),
			Invoices:    c.Services().InvoiceExport,
			Attachments: c.Services().Attachments,
			Logs:        c.Repositories().SyncLogs,
			Exporter:    report.NewSyncLogExporter(logger),
			Version:     version,
			Logger:      c.ServiceLogger(),
		})

		server := httpapi.NewServer(httpapi.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}, handlers, c.ServiceLogger())

		err := server.Start(ctx)
		logger.Info("eAK connector stopped")
		return err
	})
}
