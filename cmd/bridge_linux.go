//go:build linux

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"firestige.xyz/lswitch/internal/host/afpacket"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge [INTERFACE...]",
	Short: "Bridge real network interfaces through the switch (requires CAP_NET_RAW)",
	Long: `
Bridge network interfaces with AF_PACKET sockets. Interface k is the k-th
argument (or the k-th entry of switch.interfaces). Runs until interrupted.

Examples:
  sudo lswitch bridge veth1 veth2 veth3
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBridge(cmd.Context(), configFile, args)
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(ctx context.Context, path string, args []string) error {
	e, err := setup(ctx, path)
	if err != nil {
		return err
	}
	defer e.close(context.Background())

	names, err := e.interfaceNames(args)
	if err != nil {
		return err
	}
	b, err := afpacket.Open(names, afpacket.Options{
		SnapLen:     e.cfg.Bridge.SnapLen,
		PollTimeout: e.cfg.Bridge.PollTimeout,
		QueueDepth:  e.cfg.Bridge.QueueDepth,
	}, e.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	eng, err := e.newEngine(names, b)
	if err != nil {
		return err
	}
	if err := b.Announce(eng); err != nil {
		return err
	}

	e.logger.Info("bridge running")
	if err := b.Run(ctx, eng); err != nil {
		e.logger.WithError(err).Error("bridge stopped")
		return err
	}
	e.logger.Info("bridge stopped")
	return nil
}
