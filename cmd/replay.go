package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/lswitch/internal/host/pcapio"
	"firestige.xyz/lswitch/internal/switching/clock"
	"firestige.xyz/lswitch/internal/switching/engine"
)

var (
	replayInputs     []string
	replayOutDir     string
	replayInterfaces int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay pcap captures through the switch",
	Long: `
Replay capture files through the switch. Each --in binds a pcap file to the
interface its packets arrive on; packets from all files are delivered in capture
time order. Every transmitted frame is written to <out-dir>/ifc-<id>.pcap.

Examples:
  lswitch replay --in 1=host-a.pcap --in 2=host-b.pcap
  lswitch replay --in 1=a.pcap --interfaces 4 --out-dir /tmp/egress
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runReplay(cmd.Context(), configFile, replayInputs, replayOutDir, replayInterfaces, cmd.OutOrStdout())
		return err
	},
}

func init() {
	replayCmd.Flags().StringArrayVarP(&replayInputs, "in", "i", nil, "input as <interface>=<file.pcap> (repeatable)")
	replayCmd.Flags().StringVarP(&replayOutDir, "out-dir", "o", "", "directory for egress captures (default replay.out_dir)")
	replayCmd.Flags().IntVarP(&replayInterfaces, "interfaces", "n", 0, "number of switch interfaces (default: highest input interface)")
	_ = replayCmd.MarkFlagRequired("in")
}

func runReplay(ctx context.Context, path string, rawInputs []string, outDir string, count int, out io.Writer) (pcapio.Summary, error) {
	inputs := make([]pcapio.Input, 0, len(rawInputs))
	for _, s := range rawInputs {
		in, err := pcapio.ParseInput(s)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
		if in.Interface > count {
			count = in.Interface
		}
	}

	e, err := setup(ctx, path)
	if err != nil {
		return nil, err
	}
	defer e.close(context.Background())

	if n := len(e.cfg.Switch.Interfaces); n > count {
		count = n
	}
	if outDir == "" {
		outDir = e.cfg.Replay.OutDir
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("ifc-%d", i+1)
	}
	copy(names, e.cfg.Switch.Interfaces)

	egress, err := pcapio.NewEgressWriter(outDir, count)
	if err != nil {
		return nil, err
	}
	defer egress.Close()

	c := clock.NewManual(0)
	eng, err := e.newEngine(names, egress, engine.WithClock(c))
	if err != nil {
		return nil, err
	}

	r := pcapio.NewReplayer(eng, c, egress, e.logger)
	defer r.Close()
	if err := r.Open(inputs); err != nil {
		return nil, err
	}
	summary, err := r.Run(ctx)
	if err != nil {
		return summary, err
	}

	fmt.Fprintf(out, "replayed %d frames: %d forwarded, %d flooded, %d filtered, %d malformed\n",
		summary.Total(),
		summary[engine.VerdictForwarded],
		summary[engine.VerdictFlooded],
		summary[engine.VerdictFiltered],
		summary[engine.VerdictMalformed],
	)
	return summary, egress.Close()
}
