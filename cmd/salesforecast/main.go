// Command salesforecast produces monthly sales forecasts, optionally per
// segment, from transaction exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "salesforecast",
		Short:         "Monthly sales forecasting",
		Long:          `Fits an additive trend and yearly seasonality model to monthly sales, per segment, and exports forecasts with uncertainty bounds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default: ./salesforecast.yaml or ./configs/salesforecast.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level (overrides config)")
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before the config; a missing default file is ignored")
	root.PersistentPreRunE = loadEnvFile

	root.AddCommand(newForecastCmd(), newVersionCmd())
	return root
}

// loadEnvFile exports variables from the env file without overriding the
// process environment.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "salesforecast %s\n", version)
		},
	}
}
