package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/garyjia/eak-connector/internal/config"
	"github.com/garyjia/eak-connector/internal/container"
	"github.com/garyjia/eak-connector/pkg/utils"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

var version = "1.0.0"

// app carries what PersistentPreRunE loaded for the subcommands
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
	logger     *zap.Logger
}

var state = &app{}

var rootCmd = &cobra.Command{
	Use:   "eak",
	Short: "eAK e-invoicing connector",
	Long: `eak synchronizes an accounting ledger with the eAK e-invoicing service.

It imports vendor bills, refreshes partner eAK participation, fetches bill
PDFs and submits customer invoices. Every run is recorded in the sync log.

Configuration is read from the optional --config YAML file and EAK_*
environment variables. A .env file is loaded first when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return state.load()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if state.logger != nil {
			_ = state.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&state.configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&state.envFile, "env-file", ".env", "dotenv file loaded before configuration")
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if state.logger != nil {
			state.logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	if a.envFile != "" {
		if err := gotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "eak-connector",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg, a.logger = cfg, logger
	return nil
}

// withContainer starts a container for one command. Scheduled workers run only when withWorkers is set.
func (a *app) withContainer(ctx context.Context, withWorkers bool, fn func(ctx context.Context, c *container.Container) error) error {
	cfg := *a.cfg
	cfg.EAK.WorkersEnabled = withWorkers && a.cfg.EAK.WorkersEnabled

	c, err := container.NewContainer(&cfg, a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			a.logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	return fn(ctx, c)
}
