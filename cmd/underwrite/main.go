// Package main implements the underwrite CLI: run deals through the engine,
// inspect the product catalog and validate term sheets.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"underwriting-engine/internal/utils"
)

type rootOptions struct {
	verbose    bool
	catalogDir string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "underwrite",
		Short: "Commercial real estate underwriting engine",
		Long: `underwrite sizes agency multifamily loans, projects hold-period returns
and checks a deal against Fannie Mae and Freddie Mac product requirements.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			if err := utils.InitLogger(level); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&opts.catalogDir, "catalog-dir", "", "Term sheet directory (default: CATALOG_DIR or embedded)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newProductsCmd(opts))
	rootCmd.AddCommand(newCatalogCmd())
	return rootCmd
}

func logger() *zap.Logger {
	if utils.Logger == nil {
		return zap.NewNop()
	}
	return utils.Logger
}

func main() {
	defer utils.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
