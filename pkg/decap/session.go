package decap

import (
	"github.com/StamusNetworks/gopherdecap/pkg/esp"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

// Outcome tells what Route did with a frame
type Outcome int

const (
	OutcomePassthrough Outcome = iota
	OutcomeIPIP
	OutcomeIPv6
	OutcomeGRE
	OutcomeESP
	// OutcomeESPNoFlow means no configured flow matched, frame was copied as is
	OutcomeESPNoFlow
	// OutcomeESPFailed means decryption was attempted and rejected, frame was copied as is
	OutcomeESPFailed
	// OutcomeMalformed means headers were inconsistent with captured data, frame was copied as is
	OutcomeMalformed
)

var outcomeNames = map[Outcome]string{
	OutcomePassthrough: "passthrough",
	OutcomeIPIP:        "ipip",
	OutcomeIPv6:        "ipv6-in-ip",
	OutcomeGRE:         "gre",
	OutcomeESP:         "esp",
	OutcomeESPNoFlow:   "esp-no-flow",
	OutcomeESPFailed:   "esp-failed",
	OutcomeMalformed:   "malformed",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Decapsulated reports if outer encapsulation was removed
func (o Outcome) Decapsulated() bool {
	switch o {
	case OutcomeIPIP, OutcomeIPv6, OutcomeGRE, OutcomeESP:
		return true
	}
	return false
}

/*
Session holds state shared by all frames of a run. It is built once before
processing starts and only read afterwards. Concurrent runs should each use
their own copy, flow table itself can be shared.
*/
type Session struct {
	// Flows selects ESP decryption parameters, nil means no ESP flow is known
	Flows *esp.Table
	// SkipESP disables ESP decapsulation, ESP frames are copied as is
	SkipESP bool
	// Provider resolves ciphers, esp.DefaultProvider when nil
	Provider esp.Provider
	// LinkType of input frames, only ethernet is inspected
	LinkType layers.LinkType
	// Log receives per packet diagnostics at debug level
	Log *logrus.Entry
}

// NewSession creates an ethernet session with default crypto provider
func NewSession(flows *esp.Table, skipESP bool) *Session {
	return &Session{
		Flows:    flows,
		SkipESP:  skipESP,
		Provider: esp.DefaultProvider,
		LinkType: layers.LinkTypeEthernet,
		Log:      logrus.NewEntry(logrus.StandardLogger()),
	}
}

func (s *Session) provider() esp.Provider {
	if s.Provider == nil {
		return esp.DefaultProvider
	}
	return s.Provider
}

func (s *Session) log() *logrus.Entry {
	if s.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Log
}
