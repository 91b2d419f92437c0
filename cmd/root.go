// Package cmd implements the command-line interface for countyscan.
// It provides the root command and subcommands for discovering and
// extracting county maternal health program pages.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmdcounties "github.com/jonesrussell/countyscan/cmd/counties"
	"github.com/jonesrussell/countyscan/cmd/discover"
	"github.com/jonesrussell/countyscan/cmd/extract"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	// rootCmd represents the root command for the countyscan CLI.
	rootCmd = &cobra.Command{
		Use:   "countyscan",
		Short: "Discover and extract county maternal health program pages",
		Long: `countyscan crawls county government websites, follows department,
section, and program links toward maternal and child health content, and
stores extracted page records as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are visible to viper.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("countyscan version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(discover.Command(&cfgFile, &debug))
	rootCmd.AddCommand(extract.Command(&cfgFile, &debug))
	rootCmd.AddCommand(cmdcounties.Command(&cfgFile, &debug))
}
