package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/lswitch/internal/host/stdio"
)

var runCmd = &cobra.Command{
	Use:   "run [INTERFACE...]",
	Short: "Switch frames exchanged with a lab harness over stdin/stdout",
	Long: `
Run the switch under a lab harness. Interface k is the k-th argument (or the
k-th entry of switch.interfaces). Events arrive on stdin and transmitted frames
leave on stdout, each as a size/type envelope; logs go to stderr.

Examples:
  lswitch run eth0 eth1 eth2                # three-port switch
  lswitch run -c lab.yml                    # interfaces from the config file
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSwitch(cmd.Context(), configFile, args, os.Stdin, os.Stdout)
	},
}

func runSwitch(ctx context.Context, path string, args []string, in io.Reader, out io.Writer) error {
	e, err := setup(ctx, path)
	if err != nil {
		return err
	}
	defer e.close(context.Background())

	names, err := e.interfaceNames(args)
	if err != nil {
		return err
	}
	eng, err := e.newEngine(names, stdio.NewWriter(out))
	if err != nil {
		return err
	}

	err = stdio.NewHost(eng, in, e.logger).Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		e.logger.Info("switch stopped by signal")
		return nil
	}
	if err != nil {
		e.logger.WithError(err).Error("switch stopped")
		return err
	}
	return nil
}
