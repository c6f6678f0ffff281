package decap

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"
)

const (
	greBaseLen     = 4
	greOptionalLen = 4

	greChecksum    uint16 = 0x8000
	greRouting     uint16 = 0x4000
	greKey         uint16 = 0x2000
	greSeq         uint16 = 0x1000
	greVersionMask uint16 = 0x0007
)

// greHeaderLen returns size of GRE base header plus optional fields announced by flags
func greHeaderLen(flags uint16) int {
	n := greBaseLen
	if flags&(greChecksum|greRouting) != 0 {
		n += greOptionalLen
	}
	if flags&greKey != 0 {
		n += greOptionalLen
	}
	if flags&greSeq != 0 {
		n += greOptionalLen
	}
	return n
}

/*
decapGRE keeps the ethernet header and replaces outer IPv4 and GRE headers with the
GRE payload. Optional checksum, key and sequence fields are skipped. Enhanced GRE
(version 1, used by PPTP) is not handled.
*/
func decapGRE(in Frame, outer ipv4Header) (Frame, error) {
	payload, err := outer.ipPayload(in)
	if err != nil {
		return in, err
	}
	if len(payload) < greBaseLen {
		return in, fmt.Errorf("%w: %d bytes left for gre header", errTruncated, len(payload))
	}
	flags := binary.BigEndian.Uint16(payload[0:2])
	if version := flags & greVersionMask; version != 0 {
		return in, fmt.Errorf("%w: gre version %d", errUnsupported, version)
	}
	proto := layers.EthernetType(binary.BigEndian.Uint16(payload[2:4]))
	hdrLen := greHeaderLen(flags)
	if hdrLen > len(payload) {
		return in, fmt.Errorf("%w: gre header of %d bytes, %d available", errTruncated, hdrLen, len(payload))
	}
	inner := payload[hdrLen:]

	data := make([]byte, ethHeaderLen+len(inner))
	copy(data, in.Data[:ethHeaderLen])
	if proto == layers.EthernetTypeIPv6 {
		setEtherType(data, layers.EthernetTypeIPv6)
	}
	copy(data[ethHeaderLen:], inner)
	return in.derive(data), nil
}
