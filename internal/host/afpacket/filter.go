//go:build linux

package afpacket

import (
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// ingressOnly assembles a socket filter that accepts up to snapLen bytes of
// every packet except those the host itself sent (PACKET_OUTGOING), so a
// port never reads back what the bridge transmitted on it.
func ingressOnly(snapLen int) ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.LoadExtension{Num: bpf.ExtType},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: unix.PACKET_OUTGOING, SkipTrue: 1},
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	})
}

// ringSize picks TPACKET_V3 geometry: a frame that holds snapLen rounded up
// to whole pages, 128 frames per block, 8 blocks.
func ringSize(snapLen, pageSize int) (frameSize, blockSize, numBlocks int) {
	frameSize = (snapLen + pageSize - 1) / pageSize * pageSize
	if frameSize < pageSize {
		frameSize = pageSize
	}
	return frameSize, frameSize * 128, 8
}
