// Package main starts the remotectl server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "remotectl",
	Short: "Remote control server for an emulated touch device",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control, signaling and audio server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath, debug)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (default ./data/remotectl.yaml)")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "enable verbose debug logging")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

// main is the entrypoint for the remotectl server.
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
