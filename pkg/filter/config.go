package filter

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gopkg.in/yaml.v2"
)

// CombinedConfig is the YAML form of a condition list, all conditions must hold
type CombinedConfig struct {
	Conditions []FilterItem `yaml:"conditions,omitempty"`
}

type FilterItem struct {
	Kind   string   `yaml:"kind,omitempty"`
	Negate bool     `yaml:"negate,omitempty"`
	Match  []string `yaml:"match,omitempty"`
}

// LoadYAML reads a condition list from file
func LoadYAML(path string) (*CombinedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c CombinedConfig
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("filter YAML parse: %s", err)
	}
	return &c, nil
}

type condition struct {
	PacketMatcher
	negate bool
}

/*
Combined decodes a frame once with gopacket and evaluates every condition against it.
Conditions are ANDed, each can be negated.
*/
type Combined struct {
	linkType   layers.LinkType
	conditions []condition
}

// NewCombined builds a Matcher for frames of given link type
func NewCombined(c CombinedConfig, linkType layers.LinkType) (*Combined, error) {
	if len(c.Conditions) == 0 {
		return nil, errors.New("filter has no conditions")
	}
	m := &Combined{linkType: linkType, conditions: make([]condition, 0, len(c.Conditions))}
	for i, item := range c.Conditions {
		kind, err := NewFilterKind(item.Kind)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %s", i, err)
		}
		var pm PacketMatcher
		switch kind {
		case FilterKindSubnet:
			pm, err = NewConditionalSubnet(item.Match)
		case FilterKindPort:
			pm, err = NewPortMatcher(item.Match)
		}
		if err != nil {
			return nil, fmt.Errorf("condition %d: %s", i, err)
		}
		m.conditions = append(m.conditions, condition{PacketMatcher: pm, negate: item.Negate})
	}
	return m, nil
}

func (m *Combined) Match(ci gopacket.CaptureInfo, data []byte) bool {
	pkt := gopacket.NewPacket(data, m.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	for _, c := range m.conditions {
		if c.PacketMatcher.Match(pkt) == c.negate {
			return false
		}
	}
	return true
}
