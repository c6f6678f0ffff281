package decap

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0xFF, 0xAA, 0xFA, 0xAA, 0xFF, 0xAA}
	dstMAC = net.HardwareAddr{0xBD, 0xBD, 0xBD, 0xBD, 0xBD, 0xBD}

	tunnelSrc = [4]byte{192, 0, 2, 1}
	tunnelDst = [4]byte{192, 0, 2, 2}
)

var serializeOpts = gopacket.SerializeOptions{
	ComputeChecksums: true,
	FixLengths:       true,
}

func ethHeader(t layers.EthernetType) []byte {
	h := make([]byte, ethHeaderLen)
	copy(h, dstMAC)
	copy(h[6:], srcMAC)
	binary.BigEndian.PutUint16(h[12:], uint16(t))
	return h
}

func vlanTag(id uint16, inner layers.EthernetType) []byte {
	tag := make([]byte, vlanTagLen)
	binary.BigEndian.PutUint16(tag, id)
	binary.BigEndian.PutUint16(tag[2:], uint16(inner))
	return tag
}

// outerIPv4 builds an IPv4 header with optLen bytes of options for a payload of
// payloadLen bytes
func outerIPv4(proto layers.IPProtocol, payloadLen, optLen int) []byte {
	ihl := ipv4MinLen + optLen
	h := make([]byte, ihl)
	h[0] = 0x40 | byte(ihl/4)
	binary.BigEndian.PutUint16(h[2:], uint16(ihl+payloadLen))
	h[8] = 64
	h[9] = byte(proto)
	copy(h[12:16], tunnelSrc[:])
	copy(h[16:20], tunnelDst[:])
	return h
}

// innerIPv4 serializes an IPv4/TCP packet without link layer
func innerIPv4(t *testing.T, payload string) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      13,
		SrcIP:    net.IP{10, 1, 1, 1},
		DstIP:    net.IP{10, 2, 2, 2},
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{SrcPort: 29999, DstPort: 80, PSH: true, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOpts, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

// innerIPv6 serializes an IPv6/UDP packet without link layer
func innerIPv6(t *testing.T, payload string) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOpts, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

// ethernetTCP serializes a regular untunneled frame
func ethernetTCP(t *testing.T) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOpts, eth, gopacket.Payload(innerIPv4(t, "plain tcp payload"))))
	return buf.Bytes()
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	tx := make([]byte, 0, n)
	for _, p := range parts {
		tx = append(tx, p...)
	}
	return tx
}

func testFrame(data []byte) Frame {
	return NewFrame(gopacket.CaptureInfo{
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
