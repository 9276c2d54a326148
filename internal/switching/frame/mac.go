package frame

import (
	"fmt"
	"net"
)

// MAC is a 48-bit Ethernet hardware address. It is an array so that two
// addresses compare equal with == exactly when their bytes do.
type MAC [6]byte

// Broadcast is the all-ones address that every station accepts.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsBroadcast reports whether m is the broadcast address.
func (m MAC) IsBroadcast() bool {
	return m == Broadcast
}

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// HardwareAddr returns m as a net.HardwareAddr backed by a fresh slice.
func (m MAC) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, len(m))
	copy(hw, m[:])
	return hw
}

// ParseMAC parses a 6-byte hardware address in any notation accepted by
// net.ParseMAC.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	return MACFromBytes(hw)
}

// MACFromBytes copies a 6-byte slice into a MAC.
func MACFromBytes(b []byte) (MAC, error) {
	var m MAC
	if len(b) != len(m) {
		return m, fmt.Errorf("hardware address must be %d bytes, got %d", len(m), len(b))
	}
	copy(m[:], b)
	return m, nil
}
