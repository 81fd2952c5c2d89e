package main

import (
	"context"

	"github.com/spf13/cobra"

	"previsioni/internal/cli"
	"previsioni/internal/config"
	applog "previsioni/internal/log"
)

var flagEnvFile string

var rootCmd = &cobra.Command{
	Use:          "forecastctl",
	Short:        "Manage the next-month expense model",
	Long:         "Seed, train and query the expense forecasting model using the server's environment configuration.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagEnvFile != "" {
			return loadEnvFile(flagEnvFile)
		}
		cli.LoadEnvFile()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load environment from this file instead of ./.env")
	rootCmd.AddCommand(seedCmd, trainCmd, predictCmd)
}

// openStack loads and validates the configuration and wires the model stack.
func openStack(ctx context.Context) (*cli.Stack, error) {
	logger := cli.SetupLogger("forecastctl")
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stack, err := cli.Bootstrap(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize model stack", applog.FieldError, err)
		return nil, err
	}
	return stack, nil
}
