package filter

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

var (
	srcMAC = net.HardwareAddr{0xFF, 0xAA, 0xFA, 0xAA, 0xFF, 0xAA}
	dstMAC = net.HardwareAddr{0xBD, 0xBD, 0xBD, 0xBD, 0xBD, 0xBD}
)

func tcpFrame(t *testing.T, src, dst net.IP, dport layers.TCPPort) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, SrcIP: src, DstIP: dst, Protocol: layers.IPProtocolTCP}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: dport, SYN: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp))
	return buf.Bytes()
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, arp))
	return buf.Bytes()
}

func TestBPFMatcher(t *testing.T) {
	// equivalent of "ip"
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 1},
		bpf.RetConstant{Val: 262144},
		bpf.RetConstant{Val: 0},
	})
	require.NoError(t, err)
	m, err := NewBPFMatcher(raw)
	require.NoError(t, err)

	tcp := tcpFrame(t, net.IP{10, 0, 0, 1}, net.IP{10, 0, 0, 2}, 80)
	assert.True(t, m.Match(gopacket.CaptureInfo{}, tcp))
	assert.False(t, m.Match(gopacket.CaptureInfo{}, arpFrame(t)))
	assert.False(t, m.Match(gopacket.CaptureInfo{}, tcp[:6]))
}

func TestBPFMatcherErrors(t *testing.T) {
	_, err := NewBPFMatcher(nil)
	assert.Error(t, err)

	_, err = NewBPFMatcher([]bpf.RawInstruction{{Op: 0xffff}})
	assert.ErrorIs(t, err, ErrBPFUnsupported)

	raw, err := bpf.Assemble([]bpf.Instruction{bpf.LoadAbsolute{Off: 12, Size: 2}})
	require.NoError(t, err)
	_, err = NewBPFMatcher(raw)
	assert.ErrorIs(t, err, ErrBPFUnsupported)
}

func TestCombined(t *testing.T) {
	inside := tcpFrame(t, net.IP{10, 1, 1, 1}, net.IP{192, 168, 0, 1}, 443)
	outside := tcpFrame(t, net.IP{172, 16, 0, 1}, net.IP{192, 168, 0, 1}, 80)

	subnet := FilterItem{Kind: "subnet", Match: []string{"10.0.0.0/8"}}
	https := FilterItem{Kind: "port", Match: []string{"443/tcp", "53/udp"}}

	cases := []struct {
		name    string
		cfg     CombinedConfig
		inside  bool
		outside bool
	}{
		{name: "subnet", cfg: CombinedConfig{Conditions: []FilterItem{subnet}}, inside: true},
		{name: "negated subnet", cfg: CombinedConfig{Conditions: []FilterItem{{Kind: "subnet", Negate: true, Match: subnet.Match}}}, outside: true},
		{name: "port", cfg: CombinedConfig{Conditions: []FilterItem{https}}, inside: true},
		{name: "subnet and port", cfg: CombinedConfig{Conditions: []FilterItem{subnet, https}}, inside: true},
		{name: "destination subnet", cfg: CombinedConfig{Conditions: []FilterItem{{Kind: "SUBNET", Match: []string{"192.168.0.0/24"}}}}, inside: true, outside: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewCombined(tc.cfg, layers.LinkTypeEthernet)
			require.NoError(t, err)
			assert.Equal(t, tc.inside, m.Match(gopacket.CaptureInfo{}, inside))
			assert.Equal(t, tc.outside, m.Match(gopacket.CaptureInfo{}, outside))
		})
	}

	t.Run("arp has no network flow", func(t *testing.T) {
		m, err := NewCombined(CombinedConfig{Conditions: []FilterItem{subnet}}, layers.LinkTypeEthernet)
		require.NoError(t, err)
		assert.False(t, m.Match(gopacket.CaptureInfo{}, arpFrame(t)))
	})
}

func TestCombinedErrors(t *testing.T) {
	bad := []CombinedConfig{
		{},
		{Conditions: []FilterItem{{Kind: "vlan", Match: []string{"42"}}}},
		{Conditions: []FilterItem{{Kind: "subnet"}}},
		{Conditions: []FilterItem{{Kind: "subnet", Match: []string{"10.0.0.300/8"}}}},
		{Conditions: []FilterItem{{Kind: "port", Match: []string{"80"}}}},
		{Conditions: []FilterItem{{Kind: "port", Match: []string{"80/sctp"}}}},
		{Conditions: []FilterItem{{Kind: "port", Match: []string{"70000/tcp"}}}},
	}
	for _, c := range bad {
		_, err := NewCombined(c, layers.LinkTypeEthernet)
		assert.Error(t, err, "%+v", c)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
conditions:
  - kind: subnet
    match:
      - 10.0.0.0/8
      - 2001:db8::/32
  - kind: port
    negate: true
    match:
      - 22/tcp
`), 0o644))

	c, err := LoadYAML(path)
	require.NoError(t, err)
	require.Len(t, c.Conditions, 2)
	assert.Equal(t, "subnet", c.Conditions[0].Kind)
	assert.Len(t, c.Conditions[0].Match, 2)
	assert.True(t, c.Conditions[1].Negate)

	strict := filepath.Join(dir, "strict.yaml")
	require.NoError(t, os.WriteFile(strict, []byte("conditions:\n  - kind: port\n    ports: [22/tcp]\n"), 0o644))
	_, err = LoadYAML(strict)
	assert.Error(t, err)

	_, err = LoadYAML(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestAll(t *testing.T) {
	yes := MatcherFunc(func(gopacket.CaptureInfo, []byte) bool { return true })
	no := MatcherFunc(func(gopacket.CaptureInfo, []byte) bool { return false })

	assert.True(t, All{}.Match(gopacket.CaptureInfo{}, nil))
	assert.True(t, All{yes, yes}.Match(gopacket.CaptureInfo{}, nil))
	assert.False(t, All{yes, no}.Match(gopacket.CaptureInfo{}, nil))
}
