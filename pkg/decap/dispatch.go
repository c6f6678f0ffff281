package decap

import (
	"errors"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

/*
Route inspects link and IP layers of a frame and hands it to the matching
transformer. Frames that are not tunneled, or that can not be decoded, are copied
unchanged, apart from 802.1Q tag removal. Input frame is never modified.
*/
func (s *Session) Route(in Frame) (Frame, Outcome) {
	if s.LinkType != layers.LinkTypeEthernet || len(in.Data) < ethHeaderLen {
		return in.clone(), OutcomePassthrough
	}
	frame := in
	if frame.etherType() == layers.EthernetTypeDot1Q {
		stripped, err := stripVLAN(frame)
		if err != nil {
			s.log().WithError(err).Debug("unable to remove vlan tag")
			return in.clone(), OutcomeMalformed
		}
		frame = stripped
	}
	if frame.etherType() != layers.EthernetTypeIPv4 {
		return frame.clone(), OutcomePassthrough
	}
	outer, err := readIPv4(frame)
	if err != nil {
		s.log().WithError(err).Debug("unable to read ip header")
		return frame.clone(), OutcomeMalformed
	}

	var (
		out     Frame
		outcome Outcome
	)
	switch outer.proto {
	case layers.IPProtocolIPv4:
		out, err = decapIPIP(frame, outer)
		outcome = OutcomeIPIP
	case layers.IPProtocolIPv6:
		out, err = decapIPv6(frame, outer)
		outcome = OutcomeIPv6
	case layers.IPProtocolGRE:
		out, err = decapGRE(frame, outer)
		outcome = OutcomeGRE
	case layers.IPProtocolESP:
		if s.SkipESP {
			s.log().Debug("esp decoding disabled, copying packet")
			return frame.clone(), OutcomePassthrough
		}
		out, outcome, err = s.decapESP(frame, outer)
	default:
		return frame.clone(), OutcomePassthrough
	}

	switch {
	case errors.Is(err, errUnsupported):
		s.log().WithError(err).Debug("copying packet")
		return frame.clone(), OutcomePassthrough
	case err != nil:
		s.log().WithFields(logrus.Fields{
			"proto": outer.proto,
			"src":   outer.src,
			"dst":   outer.dst,
		}).WithError(err).Debug("unable to decapsulate, copying packet")
		return frame.clone(), OutcomeMalformed
	}
	return out, outcome
}

// stripVLAN removes a single 802.1Q tag following the MAC addresses
func stripVLAN(in Frame) (Frame, error) {
	if len(in.Data) < ethHeaderLen+vlanTagLen {
		return in, errTruncated
	}
	data := make([]byte, len(in.Data)-vlanTagLen)
	copy(data, in.Data[:macAddrsLen])
	copy(data[macAddrsLen:], in.Data[macAddrsLen+vlanTagLen:])
	return in.derive(data), nil
}
