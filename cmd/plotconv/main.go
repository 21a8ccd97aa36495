// Package main provides the entry point for the plotconv CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/plotconv/cmd/plotconv/commands"
	"github.com/Sumatoshi-tech/plotconv/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "plotconv",
		Short: "Burst plot file converter",
		Long: `plotconv converts Burst plot files from the unoptimized layout to the
optimized one with bounded memory.

Commands:
  inline    Convert a plot in place
  outline   Convert a plot into a separate output file
  info      Show geometry and partitioning of a plot`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "config file (default: config.yaml in ., ./config or ~/.plotconv)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "log errors only")
	rootCmd.PersistentFlags().BoolVar(&globals.LogJSON, "log-json", false, "JSON-formatted logs")
	rootCmd.PersistentFlags().BoolVar(&globals.NoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(commands.NewInlineCommand(globals))
	rootCmd.AddCommand(commands.NewOutlineCommand(globals))
	rootCmd.AddCommand(commands.NewInfoCommand(globals))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "plotconv %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
