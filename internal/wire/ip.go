package wire

import (
	"encoding/binary"
	"net"
)

// IPv4ToUint32 converts a dotted-quad (optionally with a port) into the
// big-endian uint32 host order used by Token and User.LastLoginIP.
// Non-IPv4 input (including unparsable strings) yields 0.
func IPv4ToUint32(host string) uint32 {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}
