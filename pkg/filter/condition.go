package filter

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type FilterKind int

const (
	FilterKindSubnet FilterKind = iota
	FilterKindPort
)

func (k FilterKind) String() string {
	switch k {
	case FilterKindSubnet:
		return "subnet"
	case FilterKindPort:
		return "port"
	default:
		return "unknown"
	}
}

// NewFilterKind parses kind as written in filter YAML
func NewFilterKind(raw string) (FilterKind, error) {
	switch strings.ToLower(raw) {
	case "subnet":
		return FilterKindSubnet, nil
	case "port":
		return FilterKindPort, nil
	}
	return FilterKindSubnet, fmt.Errorf("unknown filter kind %s", raw)
}

// Matcher decides if a raw captured frame should be processed
type Matcher interface {
	// Match should indicate if frame matches criteria
	Match(ci gopacket.CaptureInfo, data []byte) bool
}

// MatcherFunc adapts a plain function to Matcher
type MatcherFunc func(gopacket.CaptureInfo, []byte) bool

func (f MatcherFunc) Match(ci gopacket.CaptureInfo, data []byte) bool { return f(ci, data) }

// All matches when every member does, empty set matches everything
type All []Matcher

func (a All) Match(ci gopacket.CaptureInfo, data []byte) bool {
	for _, m := range a {
		if !m.Match(ci, data) {
			return false
		}
	}
	return true
}

// PacketMatcher is a condition over an already decoded packet
type PacketMatcher interface {
	Match(gopacket.Packet) bool
}

// NewConditionalSubnet parses a list of textual network addrs into a PacketMatcher
func NewConditionalSubnet(nets []string) (ConditionSubnet, error) {
	if len(nets) == 0 {
		return nil, errors.New("no networks to parse into condition")
	}
	tx := make([]net.IPNet, 0, len(nets))
	for _, n := range nets {
		_, parsed, err := net.ParseCIDR(n)
		if err != nil {
			return tx, err
		}
		tx = append(tx, *parsed)
	}
	return tx, nil
}

// ConditionSubnet matches when either outermost network endpoint is in one of the subnets
type ConditionSubnet []net.IPNet

func (cs ConditionSubnet) Match(pkt gopacket.Packet) bool {
	if n := pkt.NetworkLayer(); n != nil {
		flow := n.NetworkFlow()
		return cs.match(net.IP(flow.Src().Raw())) || cs.match(net.IP(flow.Dst().Raw()))
	}
	return false
}

func (cs ConditionSubnet) match(ip net.IP) bool {
	if len(ip) == 0 {
		return false
	}
	for _, n := range cs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// NewPortMatcher parses ports in <number>/<tcp|udp> format
func NewPortMatcher(p []string) (*ConditionEndpoint, error) {
	if len(p) == 0 {
		return nil, errors.New("no ports to parse into condition")
	}
	vals := make(map[gopacket.Endpoint]bool)
	for _, raw := range p {
		bits := strings.Split(raw, "/")
		if len(bits) != 2 {
			return nil, fmt.Errorf("%s not valid port format, should be <number>/<tcp/udp>", raw)
		}
		port, err := strconv.ParseUint(bits[0], 10, 16)
		if err != nil {
			return nil, err
		}
		switch bits[1] {
		case "tcp":
			vals[layers.NewTCPPortEndpoint(layers.TCPPort(port))] = true
		case "udp":
			vals[layers.NewUDPPortEndpoint(layers.UDPPort(port))] = true
		default:
			return nil, fmt.Errorf(
				"protocol def invalid for %s, got %s, expected tcp or udp",
				raw,
				bits[1],
			)
		}
	}
	return &ConditionEndpoint{Values: vals}, nil
}

type ConditionEndpoint struct {
	Values map[gopacket.Endpoint]bool
}

func (cs ConditionEndpoint) Match(pkt gopacket.Packet) bool {
	if t := pkt.TransportLayer(); t != nil {
		tf := t.TransportFlow()
		return cs.match(tf.Src()) || cs.match(tf.Dst())
	}
	return false
}

func (cs ConditionEndpoint) match(v gopacket.Endpoint) bool {
	return cs.Values[v]
}
