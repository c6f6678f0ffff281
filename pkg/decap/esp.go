package decap

import (
	"encoding/binary"
	"fmt"

	"github.com/StamusNetworks/gopherdecap/pkg/esp"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

const (
	espHeaderLen  = 8 // spi + sequence
	espTrailerLen = 2 // pad length + next header
)

/*
decapESP removes outer IPv4 and ESP headers, decrypting payload when the matching
flow defines a cipher. Packets without a flow, or that fail to decrypt, are copied
unchanged. Authentication trailer is skipped, never verified.
*/
func (s *Session) decapESP(in Frame, outer ipv4Header) (Frame, Outcome, error) {
	payload, err := outer.ipPayload(in)
	if err != nil {
		return in, OutcomeMalformed, err
	}
	if len(payload) < espHeaderLen {
		return in, OutcomeMalformed, fmt.Errorf("%w: %d bytes left for esp header", errTruncated, len(payload))
	}
	spi := binary.BigEndian.Uint32(payload[0:4])
	seq := binary.BigEndian.Uint32(payload[4:8])
	lctx := s.log().WithFields(logrus.Fields{
		"src": outer.src,
		"dst": outer.dst,
		"spi": fmt.Sprintf("0x%08x", spi),
		"seq": seq,
	})

	flow, ok := s.Flows.Lookup(outer.src, outer.dst, spi)
	if !ok {
		lctx.Debug("no esp flow found, copying packet")
		return in.clone(), OutcomeESPNoFlow, nil
	}
	lctx = lctx.WithField("flow_line", flow.Line)

	body := payload[espHeaderLen:]
	if flow.Cipher.IsNull() {
		out, err := espNull(in, body, flow.Auth.TrailerLen)
		if err != nil {
			return in, OutcomeMalformed, err
		}
		return out, OutcomeESP, nil
	}
	out, err := s.espDecrypt(in, flow, body)
	if err != nil {
		lctx.WithError(err).Debug("esp decryption failed, copying packet")
		return in.clone(), OutcomeESPFailed, nil
	}
	return out, OutcomeESP, nil
}

// espNull extracts cleartext payload of a flow using null encryption
func espNull(in Frame, body []byte, authLen int) (Frame, error) {
	remaining := len(body) - authLen
	if remaining < espTrailerLen {
		return in, fmt.Errorf("%w: %d bytes left for esp trailer", errTruncated, remaining)
	}
	padLen := int(body[remaining-2])
	size := remaining - espTrailerLen - padLen
	if size < 0 {
		return in, fmt.Errorf("%w: pad length %d exceeds %d byte payload", errMalformed, padLen, remaining)
	}
	data := make([]byte, ethHeaderLen+size)
	copy(data, in.Data[:ethHeaderLen])
	setInnerEtherType(data, body[remaining-1])
	copy(data[ethHeaderLen:], body[:size])
	return in.derive(data), nil
}

// espDecrypt decrypts body into a fresh buffer and strips ESP padding. A pad length
// not below cipher block size is taken as a wrong key.
func (s *Session) espDecrypt(in Frame, flow *esp.Flow, body []byte) (Frame, error) {
	c, err := s.provider().Cipher(flow.Cipher.Provider)
	if err != nil {
		return in, err
	}
	ivLen, blockSize := c.IVSize(), c.BlockSize()
	window := len(body) - ivLen - flow.Auth.TrailerLen
	if window < espTrailerLen {
		return in, fmt.Errorf("%w: %d bytes of ciphertext", errTruncated, window)
	}
	iv := body[:ivLen]
	ciphertext := body[ivLen : ivLen+window]

	d, err := c.NewDecrypter(flow.Key, iv)
	if err != nil {
		return in, err
	}
	defer d.Reset()

	// room for a final block, should the provider hold one back
	data := make([]byte, ethHeaderLen+window+blockSize)
	n, err := d.Update(data[ethHeaderLen:], ciphertext)
	if err != nil {
		return in, err
	}
	m, err := d.Final(data[ethHeaderLen+n:])
	if err != nil {
		return in, err
	}
	decrypted := n + m
	if decrypted < espTrailerLen {
		return in, fmt.Errorf("%w: %d bytes decrypted", errTruncated, decrypted)
	}
	plain := data[ethHeaderLen : ethHeaderLen+decrypted]
	padLen := int(plain[decrypted-2])
	if padLen >= blockSize {
		return in, fmt.Errorf("pad length %d not below block size %d, wrong key or corrupted packet", padLen, blockSize)
	}
	size := decrypted - espTrailerLen - padLen
	if size < 0 {
		return in, fmt.Errorf("%w: pad length %d exceeds %d decrypted bytes", errMalformed, padLen, decrypted)
	}
	copy(data, in.Data[:ethHeaderLen])
	setInnerEtherType(data, plain[decrypted-1])
	return in.derive(data[:ethHeaderLen+size]), nil
}

// setInnerEtherType follows ESP next header for tunnel mode payloads
func setInnerEtherType(data []byte, nextHeader byte) {
	switch layers.IPProtocol(nextHeader) {
	case layers.IPProtocolIPv4:
		setEtherType(data, layers.EthernetTypeIPv4)
	case layers.IPProtocolIPv6:
		setEtherType(data, layers.EthernetTypeIPv6)
	}
}
