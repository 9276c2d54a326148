// Package pcapio replays capture files through the switch and records what
// it transmits, one pcap file per interface.
package pcapio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65536

// EgressWriter is an engine.Transmitter that appends every frame to
// <dir>/ifc-<id>.pcap, stamped with the time of the frame being handled.
type EgressWriter struct {
	files   map[int]*os.File
	writers map[int]*pcapgo.Writer
	now     time.Time
}

// EgressPath is the file that frames sent on ifc are written to.
func EgressPath(dir string, ifc int) string {
	return filepath.Join(dir, fmt.Sprintf("ifc-%d.pcap", ifc))
}

// NewEgressWriter creates one pcap file per interface 1..count in dir.
func NewEgressWriter(dir string, count int) (*EgressWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	ew := &EgressWriter{
		files:   make(map[int]*os.File, count),
		writers: make(map[int]*pcapgo.Writer, count),
	}
	for ifc := 1; ifc <= count; ifc++ {
		f, err := os.Create(EgressPath(dir, ifc))
		if err != nil {
			ew.Close()
			return nil, err
		}
		ew.files[ifc] = f
		w := pcapgo.NewWriter(f)
		if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
			ew.Close()
			return nil, fmt.Errorf("write pcap header for interface %d: %w", ifc, err)
		}
		ew.writers[ifc] = w
	}
	return ew, nil
}

// SetTime sets the timestamp recorded for subsequent transmissions.
func (ew *EgressWriter) SetTime(t time.Time) {
	ew.now = t
}

func (ew *EgressWriter) Transmit(ifc int, raw []byte) error {
	w, ok := ew.writers[ifc]
	if !ok {
		return fmt.Errorf("no egress file for interface %d", ifc)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ew.now,
		CaptureLength: len(raw),
		Length:        len(raw),
	}
	return w.WritePacket(ci, raw)
}

// Close closes every egress file. Closing twice is a no-op.
func (ew *EgressWriter) Close() error {
	var firstErr error
	for ifc, f := range ew.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(ew.files, ifc)
	}
	return firstErr
}
