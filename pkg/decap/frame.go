package decap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// MaxSnaplen is the largest frame written to output captures
	MaxSnaplen = 65535

	macAddrsLen  = 12
	ethHeaderLen = 14
	vlanTagLen   = 4
	ipv4MinLen   = 20
)

var (
	errTruncated   = errors.New("truncated frame")
	errMalformed   = errors.New("malformed header")
	errUnsupported = errors.New("unsupported encapsulation")
)

// Frame is a captured frame along with pcap metadata. Transformers never modify
// input frames, every output frame owns its data.
type Frame struct {
	gopacket.CaptureInfo
	Data []byte
}

// NewFrame wraps raw data as read from a capture
func NewFrame(ci gopacket.CaptureInfo, data []byte) Frame {
	return Frame{CaptureInfo: ci, Data: data}
}

// derive builds output metadata for data decapsulated from f. Bytes that were never
// captured in f are accounted for in the original length.
func (f Frame) derive(data []byte) Frame {
	ci := f.CaptureInfo
	missing := ci.Length - len(f.Data)
	if missing < 0 {
		missing = 0
	}
	ci.CaptureLength = len(data)
	ci.Length = len(data) + missing
	return Frame{CaptureInfo: ci, Data: data}
}

func (f Frame) clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return f.derive(data)
}

func (f Frame) etherType() layers.EthernetType {
	return layers.EthernetType(binary.BigEndian.Uint16(f.Data[macAddrsLen:ethHeaderLen]))
}

func setEtherType(data []byte, t layers.EthernetType) {
	binary.BigEndian.PutUint16(data[macAddrsLen:ethHeaderLen], uint16(t))
}

// ipv4Header holds outer header fields used by transformers
type ipv4Header struct {
	ihl      int
	totalLen int
	proto    layers.IPProtocol
	src, dst netip.Addr
}

// readIPv4 parses the header right after the ethernet header of f
func readIPv4(f Frame) (ipv4Header, error) {
	var h ipv4Header
	if len(f.Data) < ethHeaderLen+ipv4MinLen {
		return h, errTruncated
	}
	b := f.Data[ethHeaderLen:]
	if version := b[0] >> 4; version != 4 {
		return h, fmt.Errorf("%w: ip version %d", errMalformed, version)
	}
	h.ihl = int(b[0]&0x0f) * 4
	if h.ihl < ipv4MinLen {
		return h, fmt.Errorf("%w: ip header length %d", errMalformed, h.ihl)
	}
	if h.ihl > len(b) {
		return h, errTruncated
	}
	h.totalLen = int(binary.BigEndian.Uint16(b[2:4]))
	if h.totalLen < h.ihl {
		return h, fmt.Errorf("%w: ip total length %d below header length %d", errMalformed, h.totalLen, h.ihl)
	}
	h.proto = layers.IPProtocol(b[9])
	h.src = netip.AddrFrom4(*(*[4]byte)(b[12:16]))
	h.dst = netip.AddrFrom4(*(*[4]byte)(b[16:20]))
	return h, nil
}

// ipPayload returns bytes between end of outer header and its declared total length
func (h ipv4Header) ipPayload(f Frame) ([]byte, error) {
	end := ethHeaderLen + h.totalLen
	if end > len(f.Data) {
		return nil, fmt.Errorf("%w: ip total length %d exceeds %d captured bytes",
			errTruncated, h.totalLen, len(f.Data)-ethHeaderLen)
	}
	return f.Data[ethHeaderLen+h.ihl : end], nil
}
