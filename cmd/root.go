// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lswitch",
	Short: "lswitch - software Ethernet learning switch",
	Long: `lswitch forwards Ethernet frames between numbered interfaces. It learns which
interface each source address lives behind, forwards known unicast traffic to
that interface only, and floods broadcasts and unknown destinations.

Hosts:
  run      driven by a lab harness over stdin/stdout envelopes
  replay   feeds pcap captures through the switch and records the egress
  bridge   bridges real interfaces with AF_PACKET sockets (Linux)`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/lswitch/config.yml",
		"config file path (defaults are used when it does not exist)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}
