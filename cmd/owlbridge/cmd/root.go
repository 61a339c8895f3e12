// Package cmd provides the CLI commands for owlbridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/owlbridge/owlbridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "owlbridge",
	Short: "owlbridge - HTTP bridge to the rustowl analysis engine",
	Long: `owlbridge accepts Rust source over HTTP, runs one rustowl process per
request over its stdio JSON-RPC protocol, and returns the analysis result
for a cursor position.

Quick start:
  1. Make sure "rustowl" is on PATH and run owlbridge inside a Cargo crate
  2. Run: owlbridge serve
  3. POST {"source": "...", "line": 0, "character": 3} to /api/analyze

Configuration:
  Config is loaded from owlbridge.yaml in the current directory,
  $HOME/.owlbridge/, or /etc/owlbridge/.

  Environment variables can override config values with the OWLBRIDGE_ prefix.
  Example: OWLBRIDGE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the HTTP server
  analyze     Analyze one file locally and print the result
  stop        Stop the running server
  hash-key    Generate a hash for an API key
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./owlbridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
