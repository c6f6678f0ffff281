package decap

import (
	"github.com/google/gopacket/layers"
)

// decapIPv6 drops the outer IPv4 header of an IPv6 in IPv4 packet and marks the frame
// as IPv6. Everything captured after the outer header is kept.
func decapIPv6(in Frame, outer ipv4Header) (Frame, error) {
	inner := in.Data[ethHeaderLen+outer.ihl:]
	if len(inner) == 0 {
		return in, errTruncated
	}
	data := make([]byte, ethHeaderLen+len(inner))
	copy(data, in.Data[:macAddrsLen])
	setEtherType(data, layers.EthernetTypeIPv6)
	copy(data[ethHeaderLen:], inner)
	return in.derive(data), nil
}
