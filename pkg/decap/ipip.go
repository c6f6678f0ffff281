package decap

import (
	"encoding/binary"
	"fmt"
)

// decapIPIP keeps the ethernet header and replaces outer IPv4 header with the inner
// packet, sized by inner total length field
func decapIPIP(in Frame, outer ipv4Header) (Frame, error) {
	inner := in.Data[ethHeaderLen+outer.ihl:]
	if len(inner) < ipv4MinLen {
		return in, fmt.Errorf("%w: %d bytes left for inner ip header", errTruncated, len(inner))
	}
	innerLen := int(binary.BigEndian.Uint16(inner[2:4]))
	if innerLen < ipv4MinLen {
		return in, fmt.Errorf("%w: inner total length %d", errMalformed, innerLen)
	}
	if innerLen > len(inner) {
		return in, fmt.Errorf("%w: inner total length %d, %d bytes captured", errTruncated, innerLen, len(inner))
	}
	data := make([]byte, ethHeaderLen+innerLen)
	copy(data, in.Data[:ethHeaderLen])
	copy(data[ethHeaderLen:], inner[:innerLen])
	return in.derive(data), nil
}
