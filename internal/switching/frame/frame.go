// Package frame decodes the Ethernet header the switch forwards on.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// HeaderLen is the size of destination, source and tag on the wire.
const HeaderLen = 14

// ErrMalformedFrame is returned for buffers too short to hold a header.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a view over a raw buffer. Payload aliases the buffer.
type Frame struct {
	Dst     MAC
	Src     MAC
	Tag     uint16
	Payload []byte
}

// Parse splits buf into header fields and payload. Nothing beyond the
// header length is validated.
func Parse(buf []byte) (Frame, error) {
	if len(buf) < HeaderLen {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(buf), HeaderLen)
	}
	var f Frame
	copy(f.Dst[:], buf[0:6])
	copy(f.Src[:], buf[6:12])
	f.Tag = binary.BigEndian.Uint16(buf[12:14])
	f.Payload = buf[HeaderLen:]
	return f, nil
}

func (f Frame) String() string {
	return fmt.Sprintf("%s -> %s tag=0x%04x len=%d", f.Src, f.Dst, f.Tag, HeaderLen+len(f.Payload))
}

// Summary lists the protocol layers gopacket recognises in raw, for
// example "Ethernet/IPv4/UDP/Payload". It is only meant for logs.
func Summary(raw []byte) string {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.NoCopy)
	names := make([]string, 0, 4)
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	return strings.Join(names, "/")
}
