// Package cli implements the hivectl command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	thehive "github.com/mkivela/go-thehive"
	"github.com/mkivela/go-thehive/internal/config"
)

var (
	configPath string
	verbose    bool
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "hivectl",
		Short: "hivectl - TheHive and Cortex automation",
		Long: `hivectl automates incident handling against TheHive and Cortex:
it creates alerts and cases, attaches observables, launches analyzers,
polls the resulting jobs, and triggers responders.

Connection settings come from a YAML config file, a .env file, or the
THEHIVE_URL / THEHIVE_API_KEY / CORTEX_URL / CORTEX_API_KEY environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(analyzersCmd)
	rootCmd.AddCommand(respondersCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig resolves configuration once for the invoked command.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newClient builds the API client from resolved configuration.
func newClient(cfg *config.Config) (*thehive.Client, error) {
	opts := []thehive.ClientOption{
		thehive.WithHiveURL(cfg.Hive.URL),
		thehive.WithHiveAPIKey(cfg.Hive.APIKey),
	}
	if cfg.Cortex.URL != "" {
		opts = append(opts,
			thehive.WithCortexURL(cfg.Cortex.URL),
			thehive.WithCortexAPIKey(cfg.Cortex.APIKey),
		)
	}
	return thehive.NewClient(opts...)
}

// newLogger builds the CLI logger; verbose enables debug-level output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
